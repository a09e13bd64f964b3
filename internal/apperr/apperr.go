// Package apperr defines the error taxonomy shared by the gateways and
// services: missing resources, invalid input, forbidden mutations and
// transient backend failures.
package apperr

import (
	"errors"
	"fmt"
)

// NotFoundError indicates that a referenced project, deliverable, user or
// row does not exist. Callers render it as an empty state.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError indicates malformed input such as an invalid reminder
// policy or a post missing required fields.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PermissionError indicates that the acting user may not perform Action.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Action
}

// TransientIOError wraps a backend or network failure. The operation left
// no partial mutation behind and may be retried.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Forbidden builds a PermissionError.
func Forbidden(action string) error {
	return &PermissionError{Action: action}
}

// Transient wraps err as a TransientIOError unless it already belongs to
// the taxonomy, in which case it is returned unchanged. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsValidation(err) || IsPermission(err) || IsTransient(err) {
		return err
	}
	return &TransientIOError{Op: op, Err: err}
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsPermission reports whether err (or any error in its chain) is a PermissionError.
func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

// IsTransient reports whether err (or any error in its chain) is a TransientIOError.
func IsTransient(err error) bool {
	var target *TransientIOError
	return errors.As(err, &target)
}
