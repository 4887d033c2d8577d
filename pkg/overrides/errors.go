package overrides

import "fmt"

// InvalidOverrideError reports bad override arguments. It is returned before
// the builder is modified.
type InvalidOverrideError struct {
	Override string
	Reason   string
	Err      error
}

func (e *InvalidOverrideError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid `%s` override: %s: %v", e.Override, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid `%s` override: %s", e.Override, e.Reason)
}

func (e *InvalidOverrideError) Unwrap() error { return e.Err }

func invalid(override, format string, args ...any) error {
	return &InvalidOverrideError{Override: override, Reason: fmt.Sprintf(format, args...)}
}
