package domain

import (
	"github.com/mohae/deepcopy"
)

// Dict is a node wrapping a mapping of parameters.
type Dict struct {
	nodeBase
	attributes map[string]any
}

// NewDict creates an unstored Dict holding a deep copy of attrs.
func NewDict(attrs map[string]any) *Dict {
	return &Dict{
		nodeBase:   newNodeBase(),
		attributes: copyMap(attrs),
	}
}

func (d *Dict) TypeName() string { return "dict" }

// Get returns a deep copy of the value stored under key.
func (d *Dict) Get(key string) (any, bool) {
	v, ok := d.attributes[key]
	if !ok {
		return nil, false
	}
	return deepcopy.Copy(v), true
}

// AsMap returns a deep copy of all attributes.
func (d *Dict) AsMap() map[string]any {
	return copyMap(d.attributes)
}

// Len returns the number of top-level keys.
func (d *Dict) Len() int { return len(d.attributes) }

// Update applies fn to the live attributes of an unstored Dict.
// Nested maps reached from the argument are the Dict's own maps, so changes persist.
func (d *Dict) Update(fn func(attrs map[string]any) error) error {
	if err := d.checkMutable(); err != nil {
		return err
	}
	return fn(d.attributes)
}

// Set stores a deep copy of value under key.
func (d *Dict) Set(key string, value any) error {
	return d.Update(func(attrs map[string]any) error {
		attrs[key] = deepcopy.Copy(value)
		return nil
	})
}

func (d *Dict) Clone() Node {
	return &Dict{
		nodeBase:   d.cloneBase(),
		attributes: copyMap(d.attributes),
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return deepcopy.Copy(m).(map[string]any)
}
