package model

import (
	"errors"
	"fmt"
)

// Error taxonomy for the provider state machine. The orchestrator switches on
// these kinds instead of catching arbitrary failures; cache misses are not
// errors at all and are expressed as (value, ok) returns.

// ValidationError reports bad caller input. It never reaches the cache or
// remote layers.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// SplitError reports that a sub-request of a decomposed fetch failed. It
// aborts the whole logical request.
type SplitError struct {
	SplitIndex  int
	TotalSplits int
	Cause       error
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("split %d/%d failed: %v", e.SplitIndex+1, e.TotalSplits, e.Cause)
}

func (e *SplitError) Unwrap() error { return e.Cause }

// RemoteFetchError wraps a remote collaborator failure.
type RemoteFetchError struct {
	Operation string
	Symbol    string
	Cause     error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("remote %s for %s failed: %v", e.Operation, e.Symbol, e.Cause)
}

func (e *RemoteFetchError) Unwrap() error { return e.Cause }

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSplitError reports whether err came from a failed sub-request.
func IsSplitError(err error) bool {
	var se *SplitError
	return errors.As(err, &se)
}
