package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument marks bad or missing request fields and precondition violations.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCollaborator marks failures of the embedding, completion or vector store services.
	ErrCollaborator = errors.New("collaborator failure")
)

// FieldError describes one failed constraint.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError is returned when a payload fails schema validation.
// Message is user facing and surfaced verbatim.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidArgument) match validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// Invalid builds a ValidationError with a fixed message.
func Invalid(msg string, fields ...FieldError) error {
	return &ValidationError{Message: msg, Fields: fields}
}

// CollaboratorError wraps a failure coming from an external service.
type CollaboratorError struct {
	Service string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return e.Err.Error()
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaborator, e.Err}
}

// Collaborator wraps err as a failure of the named service; nil stays nil.
func Collaborator(service string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Service: service, Err: err}
}

// Collaboratorf formats a new collaborator error.
func Collaboratorf(service, format string, args ...any) error {
	return &CollaboratorError{Service: service, Err: fmt.Errorf(format, args...)}
}

// Describe returns the message surfaced to API callers.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Bad Request"
	}
	return msg
}
