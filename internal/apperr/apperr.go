// Package apperr defines the error taxonomy shared by the repository, auth,
// service and handler layers. Every failure a caller can act on is one of
// these sentinels, possibly wrapped; handlers match them with errors.Is.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrDuplicateIdentity   = errors.New("email or phone already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrUnauthorized        = errors.New("not authorized")
	ErrNotFound            = errors.New("not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInsufficientBalance = errors.New("insufficient points")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrTokenKindMismatch   = errors.New("token kind mismatch")
	ErrValidation          = errors.New("validation failed")
)

// ValidationError lists the offending fields of a rejected input. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateError names the field that collided on signup.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string { return e.Field + " already registered" }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateIdentity }
