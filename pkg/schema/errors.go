package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPortCollision is returned when a declaration clashes with an existing port or namespace.
var ErrPortCollision = errors.New("port collision")

// ValidationError represents a single field validation failure of a flat Schema.
type ValidationError struct {
	Key    string // Field name
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("field %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// PortValidationError reports one offending port, addressed by its breadcrumb.
type PortValidationError struct {
	Port    string // Dot-joined path, e.g. "engines.relax.code"
	Message string
}

func (e *PortValidationError) Error() string {
	return fmt.Sprintf("port `%s`: %s", e.Port, e.Message)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns all validation errors if err is, or wraps, an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}

// Breadcrumbs returns the offending port paths of a validation failure, in order.
func Breadcrumbs(err error) []string {
	var out []string
	for _, e := range ValidationErrors(err) {
		var pe *PortValidationError
		if errors.As(e, &pe) {
			out = append(out, pe.Port)
		}
	}
	return out
}
