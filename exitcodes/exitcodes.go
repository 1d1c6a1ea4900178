// Package exitcodes defines the exit codes used by bimtester.
package exitcodes

// A run that reaches the end of the engine invocation is a success, no matter how many
// scenarios failed; scenario outcomes live in the produced report.
//
// * Success (0): the engine ran to completion
// * RuntimeErr (2): orchestration failed (missing argument, stale workspace, incompatible engine, ...)
const (
	Success    = 0
	RuntimeErr = 2
)
