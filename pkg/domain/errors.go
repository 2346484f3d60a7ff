package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// ErrUnknownCategory indicates a category tag outside the closed set.
	ErrUnknownCategory = errors.New("unknown error category")

	// ErrUnknownSeverity indicates a severity name outside the closed set.
	ErrUnknownSeverity = errors.New("unknown error severity")

	// ErrEmptyPool indicates a catalog pool without entries. This is a configuration
	// defect detected at load time, never a per-call condition.
	ErrEmptyPool = errors.New("empty catalog pool")
)

// UnknownCategoryError carries the rejected category value.
type UnknownCategoryError struct {
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown error category %q (want one of validation, authorization, system)", e.Value)
}

func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory
}

// UnknownSeverityError carries the rejected severity value.
type UnknownSeverityError struct {
	Value string
}

func (e *UnknownSeverityError) Error() string {
	return fmt.Sprintf("unknown error severity %q (want one of low, medium, high, critical)", e.Value)
}

func (e *UnknownSeverityError) Is(target error) bool {
	return target == ErrUnknownSeverity
}

// IsUnknownCategory checks if the error reports a category outside the closed set.
func IsUnknownCategory(err error) bool {
	return errors.Is(err, ErrUnknownCategory)
}

// ErrorResponse defines the standard JSON error model returned by the demo API when
// a request itself fails (as opposed to the simulated errors, which are data).
// It carries a stable machine-readable code and a message safe to show anyone.
type ErrorResponse struct {
	Code    string `json:"code"`               // Machine-readable error code (e.g., UNKNOWN_CATEGORY, NOT_FOUND)
	Message string `json:"message"`            // Human-readable message
	TraceID string `json:"trace_id,omitempty"` // Optional trace/correlation ID
}
