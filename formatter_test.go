package bimtester

import (
	"bytes"
	"testing"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/testlog"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifcopenshell/bimtester/engine"
	"github.com/ifcopenshell/bimtester/report"
)

func createSampleResult() *RunResult {
	return &RunResult{
		RunID:    "run-1",
		Mode:     "isolated",
		Root:     "/tmp/bimtesterfc",
		Engine:   &engine.Result{ExitCode: 1},
		Duration: 2500 * time.Millisecond,
		Summary: &report.Summary{
			Stats: report.Stats{Total: 3, Passed: 1, Failed: 1, Skipped: 1},
			Features: []report.FeatureSummary{
				{
					Name:   "Walls",
					File:   "walls.feature",
					Status: report.StatusFailed,
					Stats:  report.Stats{Total: 3, Passed: 1, Failed: 1, Skipped: 1},
					Scenarios: []report.ScenarioSummary{
						{Name: "Walls are typed", Status: report.StatusPassed, Duration: time.Second},
						{Name: "Walls are load bearing", Status: report.StatusFailed, Error: "3 walls are not load bearing\ntraceback"},
						{Name: "Walls are pretty", Status: report.StatusSkipped},
					},
				},
			},
		},
	}
}

func TestConsoleResultFormatter_FormatResults(t *testing.T) {
	var out bytes.Buffer
	formatter := &ConsoleResultFormatter{logger: testlog.Logger(t, log.LevelInfo), out: &out}

	require.NoError(t, formatter.FormatResults(createSampleResult()))

	printed := out.String()
	assert.Contains(t, printed, "BIM Testing Results (2.5s)")
	assert.Contains(t, printed, "Walls (walls.feature)")
	assert.Contains(t, printed, "├── Walls are typed")
	assert.Contains(t, printed, "└── Walls are pretty")
	assert.Contains(t, printed, "3 walls are not load bearing")
	assert.NotContains(t, printed, "traceback")
	assert.Contains(t, printed, "Run run-1 finished in 2.5s: 3 scenarios, 1 passed, 1 failed, 1 skipped")
}

func TestConsoleResultFormatter_NoSummary(t *testing.T) {
	var out bytes.Buffer
	formatter := &ConsoleResultFormatter{logger: testlog.Logger(t, log.LevelInfo), out: &out}

	assert.NoError(t, formatter.FormatResults(&RunResult{RunID: "run-2"}))
	assert.NoError(t, formatter.FormatResults(nil))
	assert.Empty(t, out.String())
}

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ pass", getResultString(report.StatusPassed))
	assert.Equal(t, "- skip", getResultString(report.StatusSkipped))
	assert.Equal(t, "- skip", getResultString(report.StatusUntested))
	assert.Equal(t, "? undefined", getResultString(report.StatusUndefined))
	assert.Equal(t, "✗ fail", getResultString(report.StatusFailed))
	assert.Equal(t, "✗ fail", getResultString(report.StatusHookError))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.0s", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "61.0s", formatDuration(61*time.Second))
}
