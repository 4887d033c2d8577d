package schema

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MarshalJSON serializes the schema as a map of field names to type names.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw, err := s.typeNames()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// MarshalYAML serializes the schema as MarshalJSON does.
func (s Schema) MarshalYAML() (any, error) {
	if s == nil {
		return nil, nil
	}
	return s.typeNames()
}

func (s Schema) typeNames() (map[string]string, error) {
	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.Name()
	}
	return raw, nil
}

// Describe returns an ordered description of the namespace, suitable for JSON or YAML output.
func (n *Namespace) Describe() *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		switch e := pair.Value.(type) {
		case *Port:
			out.Set(pair.Key, describePort(e))
		case *Namespace:
			desc := orderedmap.New[string, any]()
			desc.Set("namespace", true)
			if e.help != "" {
				desc.Set("help", e.help)
			}
			if e.dynamic {
				desc.Set("dynamic", true)
			}
			if !e.required {
				desc.Set("required", false)
			}
			desc.Set("ports", e.Describe())
			out.Set(pair.Key, desc)
		}
	}
	return out
}

func describePort(p *Port) *orderedmap.OrderedMap[string, any] {
	desc := orderedmap.New[string, any]()
	if p.typ != nil {
		desc.Set("type", p.typ.Name())
	}
	desc.Set("required", p.required)
	if def, ok := p.Default(); ok {
		desc.Set("default", def)
	}
	if ct, ok := p.typ.(*ChoiceType); ok {
		desc.Set("choices", ct.Choices())
	}
	if p.help != "" {
		desc.Set("help", p.help)
	}
	if p.nonDB {
		desc.Set("non_db", true)
	}
	return desc
}

// MarshalJSON encodes the namespace description, keeping declaration order.
func (n *Namespace) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Describe())
}
