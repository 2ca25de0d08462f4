package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation wraps request payloads rejected by field validation.
	ErrValidation = errors.New("validation failed")
)

// ErrConflict marks a write lost to a concurrent writer; the caller may retry.
var ErrConflict = errors.New("concurrent update conflict")
