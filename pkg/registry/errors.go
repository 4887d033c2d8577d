package registry

import (
	"errors"
	"fmt"
)

// ErrPluginNotFound is returned when a name is neither registered nor declared.
var ErrPluginNotFound = errors.New("plugin not found")

// MissingPluginError is returned when resolving a known plugin that is not installed.
type MissingPluginError struct {
	Category string
	Name     string
	Extra    string
}

func (e *MissingPluginError) Error() string {
	return fmt.Sprintf("could not load the plugin `%s` (%s), probably because its package is not installed; install it with the `%s` extra",
		e.Name, e.Category, e.Extra)
}

// Is lets errors.Is match ErrPluginNotFound.
func (e *MissingPluginError) Is(target error) bool {
	return target == ErrPluginNotFound
}
