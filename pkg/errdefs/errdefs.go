// Package errdefs defines the error taxonomy shared by the synthesis pipeline.
//
// Synthesis only ever produces ValidationError, UnresolvedReferenceError and
// CyclicDependencyError. RemoteApplyError describes failures reported by the
// external apply engine that consumes a synthesized assembly.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed record, certificate or configuration input.
type ValidationError struct {
	// Resource is the address or config path of the offending declaration
	Resource string

	// Field is the attribute that failed validation (optional)
	Field string

	// Reason is a human-readable explanation
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Resource != "" && e.Field != "":
		return fmt.Sprintf("validation failed for %s (%s): %s", e.Resource, e.Field, e.Reason)
	case e.Resource != "":
		return fmt.Sprintf("validation failed for %s: %s", e.Resource, e.Reason)
	default:
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(resource, field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Resource: resource,
		Field:    field,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// UnresolvedReferenceError reports a reference to a resource that is not declared
// in the same stack or in an explicitly imported stack.
type UnresolvedReferenceError struct {
	From   string
	To     string
	Reason string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unresolved reference from %s to %s", e.From, e.To)
	}
	return fmt.Sprintf("unresolved reference from %s to %s: %s", e.From, e.To, e.Reason)
}

// CyclicDependencyError reports a dependency cycle. Cycle lists the addresses on
// the cycle, starting and ending with the same address.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// RemoteApplyError is returned by an apply engine when an operation against the
// remote control plane fails. Transient failures (throttling, timeouts) may be
// retried with backoff; permanent failures are surfaced verbatim.
type RemoteApplyError struct {
	Resource  string
	Operation string
	Transient bool
	Err       error
}

func (e *RemoteApplyError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Operation, e.Resource, kind, e.Err)
}

func (e *RemoteApplyError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsUnresolvedReference reports whether err wraps an UnresolvedReferenceError.
func IsUnresolvedReference(err error) bool {
	var target *UnresolvedReferenceError
	return errors.As(err, &target)
}

// IsCyclicDependency reports whether err wraps a CyclicDependencyError.
func IsCyclicDependency(err error) bool {
	var target *CyclicDependencyError
	return errors.As(err, &target)
}

// IsTransient reports whether err wraps a RemoteApplyError marked transient.
func IsTransient(err error) bool {
	var target *RemoteApplyError
	if errors.As(err, &target) {
		return target.Transient
	}
	return false
}
