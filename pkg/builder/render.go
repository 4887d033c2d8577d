package builder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/commonwf/pkg/domain"
)

// Describe converts a builder value into plain data suitable for display.
// Nodes are reduced to their content; identities are omitted so that two
// builders generated from the same arguments describe identically.
func Describe(v any) any {
	switch n := v.(type) {
	case *namespace:
		return toDescribedMap(n)
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = Describe(val)
		}
		return out
	case *domain.Dict:
		return n.AsMap()
	case *domain.Str:
		return n.Value()
	case *domain.Code:
		return map[string]any{"code": n.FullLabel(), "plugin": n.Capability()}
	case *domain.Group:
		return map[string]any{"group": n.Label()}
	case *domain.Structure:
		return map[string]any{
			"cell":    n.Cell(),
			"kinds":   n.KindNames(),
			"symbols": n.Symbols(),
			"sites":   len(n.Sites()),
		}
	case *domain.Kpoints:
		mesh, offset, ok := n.Mesh()
		if !ok {
			return map[string]any{"mesh": nil}
		}
		return map[string]any{"mesh": mesh, "offset": offset}
	case *domain.ProcessNode:
		return map[string]any{"process": n.ProcessType(), "uuid": n.UUID()}
	case fmt.Stringer:
		return n.String()
	default:
		return v
	}
}

func toDescribedMap(ns *namespace) map[string]any {
	out := make(map[string]any, ns.Len())
	for pair := ns.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = Describe(pair.Value)
	}
	return out
}

// Describe returns the whole builder as plain nested maps.
func (b *Builder) Describe() map[string]any {
	return toDescribedMap(b.values)
}

// MarshalJSON encodes the described builder, keeping top-level key order.
func (b *Builder) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, b.values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(buf *bytes.Buffer, ns *namespace) error {
	buf.WriteByte('{')
	first := true
	for pair := ns.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(pair.Key)
		buf.Write(key)
		buf.WriteByte(':')
		if child, ok := pair.Value.(*namespace); ok {
			if err := encodeJSON(buf, child); err != nil {
				return err
			}
			continue
		}
		val, err := json.Marshal(Describe(pair.Value))
		if err != nil {
			return fmt.Errorf("key %q: %w", pair.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}

// MarshalYAML returns an ordered YAML mapping of the described builder.
func (b *Builder) MarshalYAML() (any, error) {
	return yamlNode(b.values)
}

func yamlNode(ns *namespace) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for pair := ns.Oldest(); pair != nil; pair = pair.Next() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: pair.Key}
		var val *yaml.Node
		if child, ok := pair.Value.(*namespace); ok {
			n, err := yamlNode(child)
			if err != nil {
				return nil, err
			}
			val = n
		} else {
			val = &yaml.Node{}
			if err := val.Encode(Describe(pair.Value)); err != nil {
				return nil, fmt.Errorf("key %q: %w", pair.Key, err)
			}
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
