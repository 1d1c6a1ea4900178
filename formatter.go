package bimtester

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ifcopenshell/bimtester/report"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *RunResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
		out:    os.Stdout,
	}
}

// FormatResults prints one row per scenario file and one per scenario.
func (f *ConsoleResultFormatter) FormatResults(result *RunResult) error {
	if result == nil || result.Summary == nil {
		f.logger.Info("No scenario results to print")
		return nil
	}
	f.logger.Info("Printing results...")
	summary := result.Summary

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("BIM Testing Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "Name", "Duration", "Scenarios", "Passed", "Failed", "Skipped", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Name", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Scenarios", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, feature := range summary.Features {
		var featureDuration time.Duration
		for _, sc := range feature.Scenarios {
			featureDuration += sc.Duration
		}
		name := feature.Name
		if feature.File != "" {
			name = fmt.Sprintf("%s (%s)", feature.Name, feature.File)
		}
		t.AppendRow(table.Row{
			"Feature",
			name,
			formatDuration(featureDuration),
			feature.Stats.Total,
			feature.Stats.Passed,
			feature.Stats.Failed + feature.Stats.Undefined,
			feature.Stats.Skipped,
			getResultString(feature.Status),
			"",
		})

		for i, sc := range feature.Scenarios {
			prefix := "├──"
			if i == len(feature.Scenarios)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Scenario",
				fmt.Sprintf("%s %s", prefix, sc.Name),
				formatDuration(sc.Duration),
				"1",
				boolToInt(sc.Status == report.StatusPassed),
				boolToInt(isFailure(sc.Status)),
				boolToInt(isSkip(sc.Status)),
				getResultString(sc.Status),
				firstLine(sc.Error),
			})
		}
		t.AppendSeparator()
	}

	if summary.Stats.HasFailures() {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else if summary.Stats.Total > 0 && summary.Stats.Passed == 0 {
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		summary.Stats.Total,
		summary.Stats.Passed,
		summary.Stats.Failed + summary.Stats.Undefined,
		summary.Stats.Skipped,
		"",
		"",
	})

	t.Render()
	fmt.Fprintln(f.out, result.String())
	return nil
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
