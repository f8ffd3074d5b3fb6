package service

import "fmt"

// ValidationError is a malformed request: missing identifiers, wrong
// vector dimension, no image source. Surfaced to the caller immediately
// and never retried automatically.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// validationf builds a ValidationError from a format string.
func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
