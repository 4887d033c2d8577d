package domain

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Node is the contract of every data value that can be stored and referenced by identity.
type Node interface {
	// UUID returns the unique identifier of the node.
	UUID() string
	// Label returns the optional human-readable label.
	Label() string
	// IsStored reports whether the node has been persisted (and is therefore immutable).
	IsStored() bool
	// MarkStored flags the node as persisted. Called by NodeStore implementations.
	MarkStored()
	// Clone returns an unstored deep copy with a fresh UUID.
	Clone() Node
	// TypeName identifies the concrete node type in serialized envelopes.
	TypeName() string
}

// IsNil reports whether n is nil or a nil pointer wrapped in the interface.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	rv := reflect.ValueOf(n)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// nodeBase holds the identity fields shared by all nodes.
type nodeBase struct {
	uuid   string
	label  string
	stored bool
}

func newNodeBase() nodeBase {
	return nodeBase{uuid: uuid.NewString()}
}

func (b *nodeBase) UUID() string   { return b.uuid }
func (b *nodeBase) Label() string  { return b.label }
func (b *nodeBase) IsStored() bool { return b.stored }
func (b *nodeBase) MarkStored()    { b.stored = true }

// SetLabel sets the label of an unstored node.
func (b *nodeBase) SetLabel(label string) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	b.label = label
	return nil
}

func (b *nodeBase) checkMutable() error {
	if b.stored {
		return fmt.Errorf("node %s: %w", b.uuid, ErrStoredImmutable)
	}
	return nil
}

// cloneBase returns a fresh unstored identity keeping the label.
func (b *nodeBase) cloneBase() nodeBase {
	nb := newNodeBase()
	nb.label = b.label
	return nb
}

// Capable is implemented by values that advertise the plugin they can run.
type Capable interface {
	Capability() string
}
