// Package common defines shared constants, sentinel errors and the error
// taxonomy used across INDIEC layers. Callers should use errors.Is for the
// sentinels and errors.As for the structured error types.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorConflict     = errors.New("already exists")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("access token required")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Store-level errors.
	ErrorConstraint = errors.New("constraint violation")
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries a field-level list of problems with a request.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrorValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// ConstraintKind enumerates the relational constraints the store enforces.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintEnum       ConstraintKind = "enum"
)

// ConstraintViolation is returned by repositories when the relational store
// rejects a write. Fields names the offending column(s) when known.
type ConstraintViolation struct {
	Kind       ConstraintKind
	Fields     []string
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	msg := fmt.Sprintf("%s constraint violation", e.Kind)
	if len(e.Fields) > 0 {
		msg += " on " + strings.Join(e.Fields, ", ")
	}
	return msg
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrorConstraint) hold, and unique violations also
// match ErrorConflict.
func (e *ConstraintViolation) Is(target error) bool {
	if target == ErrorConstraint {
		return true
	}
	return target == ErrorConflict && e.Kind == ConstraintUnique
}
