package model

import (
	"errors"
	"strings"
)

// Error kinds returned by the template workflow. Wrap them with fmt.Errorf("...: %w")
// and classify with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrOperationFailed = errors.New("operation failed")
	ErrIO              = errors.New("i/o error")
	ErrExternalEngine  = errors.New("backup engine error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
)

// FieldError describes a problem with a single request field
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError carries per-field validation failures
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
