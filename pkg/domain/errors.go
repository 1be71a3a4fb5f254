package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a record that violates a field constraint.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("invalid %s %s: %s", e.Entity, e.Field, e.Message)
}

func invalid(entity EntityType, field, format string, args ...any) error {
	return ValidationError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates an unknown key.
type NotFoundError struct {
	Entity EntityType
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// IndexError indicates an index outside the bounds of an ordered collection.
type IndexError struct {
	Entity EntityType
	Index  int
	Len    int
}

func (e IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.Entity, e.Index, e.Len)
}

// ReferencedError is returned when deleting a record that other records use.
type ReferencedError struct {
	Entity     EntityType
	Key        string
	References []string
}

func (e ReferencedError) Error() string {
	return fmt.Sprintf("%s %q is used by: %s", e.Entity, e.Key, strings.Join(e.References, ", "))
}

// DepositionError indicates the packer could not seat any particle.
type DepositionError struct {
	Container ContainerKind
	Requested int
}

func (e DepositionError) Error() string {
	return fmt.Sprintf("deposition in %s failed: no particle placed out of %d", e.Container, e.Requested)
}

// IOError wraps a persistence failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e IOError) Unwrap() error { return e.Err }

// BackendError wraps a failure reported by the physics backend.
type BackendError struct {
	Op  string
	Err error
}

func (e BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e BackendError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsReferenced reports whether err is or wraps a ReferencedError.
func IsReferenced(err error) bool {
	var target ReferencedError
	return errors.As(err, &target)
}

// Severity captures rule outcomes.
type Severity string

// Rule severities.
const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityLog   Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	Key      string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Messages returns the messages of violations at the given severity.
func (r Result) Messages(severity Severity) []string {
	var out []string
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v.Message)
		}
	}
	return out
}
