package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates input that violates a domain invariant. It is
// rejected before any mutation takes place.
var ErrValidation = errors.New("validation failed")

// ErrPartialAssignment indicates the slot balancer could not place a user in
// every timestamp group it targeted. The enclosing transaction must roll
// back rather than leave a partially assigned schedule.
var ErrPartialAssignment = errors.New("partial assignment")

// NotFoundf wraps ErrNotFound with detail.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Validationf wraps ErrValidation with detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
