package domain

import (
	"encoding/json"
	"fmt"
)

// envelope is the serialized form of a node.
type envelope struct {
	Type   string          `json:"type"`
	UUID   string          `json:"uuid"`
	Label  string          `json:"label,omitempty"`
	Stored bool            `json:"stored"`
	Data   json.RawMessage `json:"data"`
}

type structureData struct {
	Cell  [3][3]float64 `json:"cell"`
	PBC   [3]bool       `json:"pbc"`
	Kinds []Kind        `json:"kinds"`
	Sites []Site        `json:"sites"`
}

type kpointsData struct {
	Cell    *[3][3]float64 `json:"cell,omitempty"`
	Mesh    [3]int         `json:"mesh"`
	Offset  [3]float64     `json:"offset"`
	HasMesh bool           `json:"has_mesh"`
}

type codeData struct {
	Plugin     string `json:"plugin"`
	Computer   string `json:"computer,omitempty"`
	Executable string `json:"executable,omitempty"`
}

type processData struct {
	ProcessType string                     `json:"process_type"`
	Inputs      map[string]json.RawMessage `json:"inputs,omitempty"`
	Outputs     map[string]json.RawMessage `json:"outputs,omitempty"`
}

// MarshalNode encodes a node, identity included, as JSON.
func MarshalNode(n Node) ([]byte, error) {
	return marshalNode(n, n.IsStored())
}

// MarshalStoredNode encodes a node as MarshalNode does, flagged as stored.
// The node itself is left untouched.
func MarshalStoredNode(n Node) ([]byte, error) {
	return marshalNode(n, true)
}

func marshalNode(n Node, stored bool) ([]byte, error) {
	var (
		data any
		err  error
	)
	switch v := n.(type) {
	case *Dict:
		data = v.attributes
	case *Str:
		data = v.value
	case *Group:
		data = v.members
	case *Code:
		data = codeData{Plugin: v.plugin, Computer: v.computer, Executable: v.executable}
	case *Structure:
		data = structureData{Cell: v.cell, PBC: v.pbc, Kinds: v.kinds, Sites: v.sites}
	case *Kpoints:
		data = kpointsData{Cell: v.cell, Mesh: v.mesh, Offset: v.offset, HasMesh: v.hasMesh}
	case *ProcessNode:
		pd := processData{ProcessType: v.processType}
		if pd.Inputs, err = marshalLinks(v.inputs); err != nil {
			return nil, err
		}
		if pd.Outputs, err = marshalLinks(v.outputs); err != nil {
			return nil, err
		}
		data = pd
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownNodeType, n)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s node: %w", n.TypeName(), err)
	}
	return json.Marshal(envelope{
		Type:   n.TypeName(),
		UUID:   n.UUID(),
		Label:  n.Label(),
		Stored: stored,
		Data:   raw,
	})
}

// UnmarshalNode decodes a node produced by MarshalNode, preserving its identity.
func UnmarshalNode(b []byte) (Node, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node envelope: %w", err)
	}
	base := nodeBase{uuid: env.UUID, label: env.Label, stored: env.Stored}

	switch env.Type {
	case "dict":
		var attrs map[string]any
		if err := json.Unmarshal(env.Data, &attrs); err != nil {
			return nil, err
		}
		if attrs == nil {
			attrs = map[string]any{}
		}
		return &Dict{nodeBase: base, attributes: attrs}, nil
	case "str":
		var s string
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, err
		}
		return &Str{nodeBase: base, value: s}, nil
	case "group":
		var members []string
		if err := json.Unmarshal(env.Data, &members); err != nil {
			return nil, err
		}
		return &Group{nodeBase: base, members: members}, nil
	case "code":
		var cd codeData
		if err := json.Unmarshal(env.Data, &cd); err != nil {
			return nil, err
		}
		return &Code{nodeBase: base, plugin: cd.Plugin, computer: cd.Computer, executable: cd.Executable}, nil
	case "structure":
		var sd structureData
		if err := json.Unmarshal(env.Data, &sd); err != nil {
			return nil, err
		}
		return &Structure{nodeBase: base, cell: sd.Cell, pbc: sd.PBC, kinds: sd.Kinds, sites: sd.Sites}, nil
	case "kpoints":
		var kd kpointsData
		if err := json.Unmarshal(env.Data, &kd); err != nil {
			return nil, err
		}
		return &Kpoints{nodeBase: base, cell: kd.Cell, mesh: kd.Mesh, offset: kd.Offset, hasMesh: kd.HasMesh}, nil
	case "process":
		var pd processData
		if err := json.Unmarshal(env.Data, &pd); err != nil {
			return nil, err
		}
		inputs, err := unmarshalLinks(pd.Inputs)
		if err != nil {
			return nil, err
		}
		outputs, err := unmarshalLinks(pd.Outputs)
		if err != nil {
			return nil, err
		}
		return &ProcessNode{nodeBase: base, processType: pd.ProcessType, inputs: inputs, outputs: outputs}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, env.Type)
	}
}

func marshalLinks(links map[string]Node) (map[string]json.RawMessage, error) {
	if len(links) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(links))
	for name, n := range links {
		b, err := MarshalNode(n)
		if err != nil {
			return nil, fmt.Errorf("link %q: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

func unmarshalLinks(raw map[string]json.RawMessage) (map[string]Node, error) {
	out := make(map[string]Node, len(raw))
	for name, b := range raw {
		n, err := UnmarshalNode(b)
		if err != nil {
			return nil, fmt.Errorf("link %q: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}
