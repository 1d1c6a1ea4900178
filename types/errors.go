package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArgument matches any *MissingArgumentError.
	ErrMissingArgument = errors.New("missing argument")

	// ErrWorkspaceCleanupFailed means a previous run's workspace could not be removed.
	ErrWorkspaceCleanupFailed = errors.New("workspace cleanup failed")

	// ErrIncompatibleEngineVersion means the installed engine is a known-broken release.
	ErrIncompatibleEngineVersion = errors.New("incompatible engine version")

	// ErrNoFeaturesFound means ad-hoc discovery found no scenario files.
	ErrNoFeaturesFound = errors.New("no features found")
)

// MissingArgumentError names the required request field that was absent.
type MissingArgumentError struct {
	Field  string
	Reason string
}

func NewMissingArgumentError(field, reason string) *MissingArgumentError {
	return &MissingArgumentError{Field: field, Reason: reason}
}

func (e *MissingArgumentError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing argument %s", e.Field)
	}
	return fmt.Sprintf("missing argument %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrMissingArgument) match.
func (e *MissingArgumentError) Is(target error) bool {
	return target == ErrMissingArgument
}
