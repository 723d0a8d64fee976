package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
)

// FieldError is an ErrInvalidArgument that names the offending input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }

func (e *FieldError) Unwrap() error { return ErrInvalidArgument }

func Invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RemoteDeletionError records a failed best-effort delete at the media host.
// It is reported to callers but never aborts an operation.
type RemoteDeletionError struct {
	PublicID string    `json:"publicId"`
	Kind     MediaKind `json:"kind"`
	Err      error     `json:"-"`
}

func (e *RemoteDeletionError) Error() string {
	return fmt.Sprintf("remote delete %s %q: %v", e.Kind, e.PublicID, e.Err)
}

func (e *RemoteDeletionError) Unwrap() error { return e.Err }
