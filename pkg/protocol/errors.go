package protocol

import (
	"fmt"
	"strings"
)

// InvalidRegistryError is returned when a protocol table is malformed.
// It is fatal: no registry is produced.
type InvalidRegistryError struct {
	Registry string
	Reason   string
}

func (e *InvalidRegistryError) Error() string {
	return fmt.Sprintf("invalid protocol registry `%s`: %s", e.Registry, e.Reason)
}

// UnknownProtocolError is returned when a protocol name is not registered.
type UnknownProtocolError struct {
	Name  string
	Known []string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("the protocol `%s` does not exist, choose one of: %s", e.Name, strings.Join(e.Known, ", "))
}
