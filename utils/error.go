package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorLockNotObtained marks transient contention failures. Callers may retry
// the whole operation, but a retry is NOT idempotent unless they send an
// Idempotency-Key.
var ErrorLockNotObtained = errors.New("lock not obtained")

// ValidationError carries field-level detail for 422 responses.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
