package bimtester

import (
	"github.com/ifcopenshell/bimtester/metrics"
)

// MetricsReporter is responsible for reporting metrics from run results.
type MetricsReporter interface {
	ReportResults(runID string, result *RunResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults records the engine exit code and one sample per scenario outcome.
func (r *DefaultMetricsReporter) ReportResults(runID string, result *RunResult) {
	if result == nil {
		return
	}
	if result.Engine != nil {
		metrics.RecordEngineExit(result.Mode, result.Engine.ExitCode)
	}
	if result.Summary == nil {
		return
	}
	for _, feature := range result.Summary.Features {
		for _, scenario := range feature.Scenarios {
			metrics.RecordScenario(feature.File, string(scenario.Status))
		}
	}
}
