package schema

import (
	"fmt"
	"strings"
)

// Spec is the accepted-argument schema of one input generator.
// It is built once by a define hook and read-only afterwards.
type Spec struct {
	inputs *Namespace
}

// NewSpec creates a spec with an empty root namespace.
func NewSpec() *Spec {
	return &Spec{inputs: NewNamespace("")}
}

// Inputs returns the root namespace.
func (s *Spec) Inputs() *Namespace { return s.inputs }

// Input declares a port. A dotted name creates the missing intermediate
// namespaces. Declaring a name that is already taken returns ErrPortCollision.
func (s *Spec) Input(name string, opts ...PortOption) error {
	parent, leaf, err := s.parent(name)
	if err != nil {
		return err
	}
	if _, exists := parent.entries.Get(leaf); exists {
		return fmt.Errorf("%w: `%s` is already declared", ErrPortCollision, name)
	}
	port, err := NewPort(leaf, opts...)
	if err != nil {
		return err
	}
	parent.entries.Set(leaf, port)
	return nil
}

// InputNamespace declares an empty namespace, creating missing intermediates.
func (s *Spec) InputNamespace(name string, opts ...NamespaceOption) error {
	parent, leaf, err := s.parent(name)
	if err != nil {
		return err
	}
	if _, exists := parent.entries.Get(leaf); exists {
		return fmt.Errorf("%w: `%s` is already declared", ErrPortCollision, name)
	}
	parent.entries.Set(leaf, NewNamespace(leaf, opts...))
	return nil
}

// Port returns the port at a dotted path.
func (s *Spec) Port(path string) (*Port, bool) {
	e, ok := s.inputs.Lookup(path)
	if !ok {
		return nil, false
	}
	p, ok := e.(*Port)
	return p, ok
}

// Namespace returns the namespace at a dotted path.
func (s *Spec) Namespace(path string) (*Namespace, bool) {
	e, ok := s.inputs.Lookup(path)
	if !ok {
		return nil, false
	}
	ns, ok := e.(*Namespace)
	return ns, ok
}

// parent returns the namespace that will hold the last segment of name,
// creating intermediate namespaces idempotently.
func (s *Spec) parent(name string) (*Namespace, string, error) {
	parts := strings.Split(name, Separator)
	for _, part := range parts {
		if part == "" {
			return nil, "", fmt.Errorf("invalid port name %q", name)
		}
	}
	current := s.inputs
	for i, part := range parts[:len(parts)-1] {
		e, ok := current.entries.Get(part)
		if !ok {
			ns := NewNamespace(part)
			current.entries.Set(part, ns)
			current = ns
			continue
		}
		ns, isNS := e.(*Namespace)
		if !isNS {
			return nil, "", fmt.Errorf("%w: `%s` is a port, not a namespace", ErrPortCollision, strings.Join(parts[:i+1], Separator))
		}
		current = ns
	}
	return current, parts[len(parts)-1], nil
}
