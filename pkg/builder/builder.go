// Package builder provides the mutable, namespaced set of inputs produced by an
// input generator and consumed by the workflow engine.
package builder

import (
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/aretw0/commonwf/pkg/ports"
)

// Separator splits nested namespace names in a key.
const Separator = "."

// ErrPathConflict is returned when a key descends through a populated non-namespace value.
var ErrPathConflict = errors.New("path conflicts with an existing value")

type namespace = orderedmap.OrderedMap[string, any]

// Builder holds the inputs for one execution of a workflow.
// Keys keep their insertion order. Not safe for concurrent use.
type Builder struct {
	process string
	values  *namespace
}

var _ ports.Builder = (*Builder)(nil)

// New creates an empty builder for the given process (workflow) type.
func New(process string) *Builder {
	return &Builder{
		process: process,
		values:  orderedmap.New[string, any](),
	}
}

// Process returns the workflow type this builder targets.
func (b *Builder) Process() string { return b.process }

// Get returns the value stored under a dotted key.
// For a namespace key the returned value is a map of its contents.
func (b *Builder) Get(key string) (any, bool) {
	parent, leaf, err := b.walk(key, false)
	if err != nil || parent == nil {
		return nil, false
	}
	v, ok := parent.Get(leaf)
	if !ok {
		return nil, false
	}
	if ns, isNS := v.(*namespace); isNS {
		return toMap(ns), true
	}
	return v, true
}

// Set stores value under a dotted key, creating intermediate namespaces.
// Map values are expanded into namespaces. The last segment may replace any
// value, but an intermediate segment holding a non-namespace value is an
// ErrPathConflict and leaves the builder unchanged.
func (b *Builder) Set(key string, value any) error {
	parent, leaf, err := b.walk(key, true)
	if err != nil {
		return err
	}
	if m, ok := value.(map[string]any); ok {
		parent.Set(leaf, fromMap(m))
		return nil
	}
	parent.Set(leaf, value)
	return nil
}

// Entry is one value of a builder and the dotted key it is stored under.
type Entry struct {
	Key   string
	Value any
}

// SetEntries stores entries in order and stops at the first failure.
func (b *Builder) SetEntries(entries ...Entry) error {
	for _, e := range entries {
		if err := b.Set(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a dotted key. Empty parent namespaces are kept.
func (b *Builder) Delete(key string) bool {
	parent, leaf, err := b.walk(key, false)
	if err != nil || parent == nil {
		return false
	}
	_, present := parent.Delete(leaf)
	return present
}

// Contains reports whether a dotted key is populated.
func (b *Builder) Contains(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Keys returns the top-level keys in insertion order.
func (b *Builder) Keys() []string {
	keys := make([]string, 0, b.values.Len())
	for pair := b.values.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of top-level keys.
func (b *Builder) Len() int { return b.values.Len() }

// ToMap returns the content as nested maps. Values are shared, not copied.
func (b *Builder) ToMap() map[string]any {
	return toMap(b.values)
}

// walk returns the namespace holding the last segment of key, or nil when an
// intermediate namespace is missing and create is false. Intermediates are
// checked before any is created.
func (b *Builder) walk(key string, create bool) (*namespace, string, error) {
	parts := strings.Split(key, Separator)
	current := b.values
	for i, part := range parts[:len(parts)-1] {
		v, ok := current.Get(part)
		if !ok {
			if !create {
				return nil, "", nil
			}
			for _, missing := range parts[i : len(parts)-1] {
				ns := orderedmap.New[string, any]()
				current.Set(missing, ns)
				current = ns
			}
			break
		}
		ns, isNS := v.(*namespace)
		if !isNS {
			path := strings.Join(parts[:i+1], Separator)
			return nil, "", fmt.Errorf("cannot set `%s`: `%s` holds a %T: %w", key, path, v, ErrPathConflict)
		}
		current = ns
	}
	return current, parts[len(parts)-1], nil
}

func toMap(ns *namespace) map[string]any {
	out := make(map[string]any, ns.Len())
	for pair := ns.Oldest(); pair != nil; pair = pair.Next() {
		if child, ok := pair.Value.(*namespace); ok {
			out[pair.Key] = toMap(child)
			continue
		}
		out[pair.Key] = pair.Value
	}
	return out
}

func fromMap(m map[string]any) *namespace {
	ns := orderedmap.New[string, any]()
	for _, k := range sortedKeys(m) {
		if child, ok := m[k].(map[string]any); ok {
			ns.Set(k, fromMap(child))
			continue
		}
		ns.Set(k, m[k])
	}
	return ns
}
