package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Separator joins namespace names into a port path.
const Separator = "."

// Namespace is an ordered group of ports and nested namespaces.
type Namespace struct {
	name     string
	help     string
	required bool
	dynamic  bool
	dynType  Type
	entries  *orderedmap.OrderedMap[string, Entry]
}

// NamespaceOption configures a Namespace.
type NamespaceOption func(*Namespace)

// Dynamic lets the namespace accept keys it does not declare.
// A non-nil t validates the values of those keys.
func Dynamic(t Type) NamespaceOption {
	return func(n *Namespace) {
		n.dynamic = true
		n.dynType = t
	}
}

// NamespaceHelp attaches a description.
func NamespaceHelp(help string) NamespaceOption {
	return func(n *Namespace) { n.help = help }
}

// OptionalNamespace skips validation of the namespace when it is absent.
func OptionalNamespace() NamespaceOption {
	return func(n *Namespace) { n.required = false }
}

// NewNamespace creates an empty, static namespace.
func NewNamespace(name string, opts ...NamespaceOption) *Namespace {
	n := &Namespace{
		name:     name,
		required: true,
		entries:  orderedmap.New[string, Entry](),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Namespace) Name() string { return n.name }
func (n *Namespace) Help() string { return n.help }

// IsDynamic reports whether undeclared keys are accepted.
func (n *Namespace) IsDynamic() bool { return n.dynamic }

// Get returns the direct member with the given name.
func (n *Namespace) Get(name string) (Entry, bool) {
	return n.entries.Get(name)
}

// Keys returns the names of the direct members in declaration order.
func (n *Namespace) Keys() []string {
	keys := make([]string, 0, n.entries.Len())
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Lookup resolves a dotted path to a member.
func (n *Namespace) Lookup(path string) (Entry, bool) {
	current := n
	parts := strings.Split(path, Separator)
	for i, part := range parts {
		e, ok := current.entries.Get(part)
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return e, true
		}
		ns, isNS := e.(*Namespace)
		if !isNS {
			return nil, false
		}
		current = ns
	}
	return nil, false
}

// Walk visits every member depth-first in declaration order.
func (n *Namespace) Walk(fn func(path string, e Entry) error) error {
	return n.walk("", fn)
}

func (n *Namespace) walk(prefix string, fn func(string, Entry) error) error {
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		path := join(prefix, pair.Key)
		if err := fn(path, pair.Value); err != nil {
			return err
		}
		if ns, ok := pair.Value.(*Namespace); ok {
			if err := ns.walk(path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// PreProcess returns a copy of values with defaults filled in top-down.
// Nested namespaces are only materialized when they end up non-empty.
// The input is not modified.
func (n *Namespace) PreProcess(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		name := pair.Key
		switch e := pair.Value.(type) {
		case *Port:
			if _, ok := out[name]; ok {
				continue
			}
			if def, ok := e.Default(); ok {
				out[name] = def
			}
		case *Namespace:
			sub, present := out[name]
			if !present {
				if filled := e.PreProcess(nil); len(filled) > 0 {
					out[name] = filled
				}
				continue
			}
			if m, ok := sub.(map[string]any); ok {
				out[name] = e.PreProcess(m)
			}
		}
	}
	return out
}

// Serialize applies port serializers recursively and returns the canonical values.
// Undeclared keys are passed through unchanged.
func (n *Namespace) Serialize(ctx context.Context, values map[string]any) (map[string]any, error) {
	return n.serialize(ctx, "", values)
}

func (n *Namespace) serialize(ctx context.Context, prefix string, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for _, key := range sortedKeys(values) {
		value := values[key]
		entry, ok := n.entries.Get(key)
		if !ok {
			out[key] = value
			continue
		}
		path := join(prefix, key)
		switch e := entry.(type) {
		case *Port:
			v, err := e.Serialize(ctx, value)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize port `%s`: %w", path, err)
			}
			out[key] = v
		case *Namespace:
			m, isMap := value.(map[string]any)
			if !isMap {
				out[key] = value
				continue
			}
			v, err := e.serialize(ctx, path, m)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
	}
	return out, nil
}

// Validate checks values against every member and returns nil or an
// *AggregateError of *PortValidationError in declaration order.
func (n *Namespace) Validate(values map[string]any) error {
	errs := n.validate("", values)
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func (n *Namespace) validate(prefix string, values map[string]any) []error {
	var errs []error
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		path := join(prefix, pair.Key)
		value, present := values[pair.Key]
		switch e := pair.Value.(type) {
		case *Port:
			if err := e.Validate(value, path); err != nil {
				errs = append(errs, err)
			}
		case *Namespace:
			if !present || value == nil {
				if e.required {
					errs = append(errs, e.validate(path, nil)...)
				}
				continue
			}
			m, ok := value.(map[string]any)
			if !ok {
				errs = append(errs, &PortValidationError{Port: path, Message: fmt.Sprintf("expected a namespace mapping, got %T", value)})
				continue
			}
			errs = append(errs, e.validate(path, m)...)
		}
	}

	for _, key := range sortedKeys(values) {
		if _, declared := n.entries.Get(key); declared {
			continue
		}
		path := join(prefix, key)
		if !n.dynamic {
			errs = append(errs, &PortValidationError{Port: path, Message: "unexpected port, the namespace does not declare it"})
			continue
		}
		if n.dynType != nil {
			if err := n.dynType.Validate(values[key]); err != nil {
				errs = append(errs, &PortValidationError{Port: path, Message: fmt.Sprintf("invalid type: %v", err)})
			}
		}
	}
	return errs
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + Separator + name
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
