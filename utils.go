package bimtester

import (
	"strings"

	"github.com/ifcopenshell/bimtester/report"
)

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isFailure(status report.Status) bool {
	switch status {
	case report.StatusFailed, report.StatusError, report.StatusHookError, report.StatusUndefined:
		return true
	}
	return false
}

func isSkip(status report.Status) bool {
	return status == report.StatusSkipped || status == report.StatusUntested
}

// getResultString returns a symbol and word for a scenario or feature status
func getResultString(status report.Status) string {
	switch {
	case status == report.StatusPassed:
		return "✓ pass"
	case isSkip(status):
		return "- skip"
	case status == report.StatusUndefined:
		return "? undefined"
	default:
		return "✗ fail"
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
