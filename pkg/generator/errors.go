package generator

import (
	"fmt"

	"github.com/aretw0/commonwf/pkg/schema"
)

// ValidationError is returned by GetBuilder when the arguments do not satisfy the spec.
// Err is the *schema.AggregateError with one entry per offending port.
type ValidationError struct {
	Generator string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid inputs for `%s`: %v", e.Generator, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Ports returns the breadcrumbs of the offending ports.
func (e *ValidationError) Ports() []string {
	return schema.Breadcrumbs(e.Err)
}
