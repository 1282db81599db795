// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Trade skips. These are reported as Result variants by the engine; the codes
	// exist so batch callers can tally skip reasons.
	ErrNoRangeFormed = &Error{Code: "NO_RANGE_FORMED", Message: "no opening range formed"}
	ErrNoEntry       = &Error{Code: "NO_ENTRY", Message: "entry condition never satisfied"}

	// Trade rejections
	ErrInvalidRisk       = &Error{Code: "INVALID_RISK", Message: "risk distance must be positive"}
	ErrCostGateRejected  = &Error{Code: "COST_GATE_REJECTED", Message: "friction exceeds viable share of risk"}
	ErrBlockedInstrument = &Error{Code: "BLOCKED_INSTRUMENT", Message: "instrument is blocked"}
	ErrUnknownInstrument = &Error{Code: "UNKNOWN_INSTRUMENT", Message: "instrument has no validated contract spec"}
	ErrInvalidParams     = &Error{Code: "INVALID_PARAMS", Message: "invalid simulation parameters"}

	// Data errors
	ErrNoData = &Error{Code: "NO_DATA", Message: "no data available"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
