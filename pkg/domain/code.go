package domain

import (
	"fmt"
	"maps"
)

// Code is an installed executable on a computer, bound to the plugin able to drive it.
type Code struct {
	nodeBase
	plugin     string
	computer   string
	executable string
}

// NewCode creates an unstored code. label and plugin are required.
func NewCode(label, plugin, computer, executable string) (*Code, error) {
	if label == "" {
		return nil, fmt.Errorf("code label is required")
	}
	if plugin == "" {
		return nil, fmt.Errorf("code %q: plugin is required", label)
	}
	c := &Code{
		nodeBase:   newNodeBase(),
		plugin:     plugin,
		computer:   computer,
		executable: executable,
	}
	c.label = label
	return c, nil
}

func (c *Code) TypeName() string { return "code" }

// Capability returns the default plugin this code runs (e.g. "siesta.siesta").
func (c *Code) Capability() string { return c.plugin }

// Computer returns the computer label the code is installed on.
func (c *Code) Computer() string { return c.computer }

// Executable returns the absolute path of the executable.
func (c *Code) Executable() string { return c.executable }

// FullLabel returns "label@computer", or just the label when no computer is set.
func (c *Code) FullLabel() string {
	if c.computer == "" {
		return c.label
	}
	return c.label + "@" + c.computer
}

func (c *Code) String() string { return c.FullLabel() }

func (c *Code) Clone() Node {
	return &Code{
		nodeBase:   c.cloneBase(),
		plugin:     c.plugin,
		computer:   c.computer,
		executable: c.executable,
	}
}

// Str is a node wrapping a single string.
type Str struct {
	nodeBase
	value string
}

// NewStr creates an unstored string node.
func NewStr(value string) *Str {
	return &Str{nodeBase: newNodeBase(), value: value}
}

func (s *Str) TypeName() string { return "str" }
func (s *Str) Value() string    { return s.value }
func (s *Str) String() string   { return s.value }

func (s *Str) Clone() Node {
	return &Str{nodeBase: s.cloneBase(), value: s.value}
}

// Group is a labelled collection of node identifiers, e.g. a pseudopotential family.
type Group struct {
	nodeBase
	members []string
}

// NewGroup creates an unstored group with the given label.
func NewGroup(label string, members ...string) *Group {
	g := &Group{nodeBase: newNodeBase(), members: append([]string(nil), members...)}
	g.label = label
	return g
}

func (g *Group) TypeName() string { return "group" }

// Members returns the identifiers of the group members.
func (g *Group) Members() []string { return append([]string(nil), g.members...) }

func (g *Group) Clone() Node {
	c := NewGroup(g.label, g.members...)
	return c
}

// ProcessNode records a completed workflow: the nodes it consumed and produced.
type ProcessNode struct {
	nodeBase
	processType string
	inputs      map[string]Node
	outputs     map[string]Node
}

// NewProcessNode creates an unstored process record.
func NewProcessNode(processType string, inputs, outputs map[string]Node) *ProcessNode {
	return &ProcessNode{
		nodeBase:    newNodeBase(),
		processType: processType,
		inputs:      maps.Clone(inputs),
		outputs:     maps.Clone(outputs),
	}
}

func (p *ProcessNode) TypeName() string { return "process" }

// ProcessType returns the workflow type that produced the record.
func (p *ProcessNode) ProcessType() string { return p.processType }

// Input returns the input node linked under name.
func (p *ProcessNode) Input(name string) (Node, bool) {
	n, ok := p.inputs[name]
	return n, ok
}

// Output returns the output node linked under name.
func (p *ProcessNode) Output(name string) (Node, bool) {
	n, ok := p.outputs[name]
	return n, ok
}

// Clone returns a new record linking the same input and output nodes.
func (p *ProcessNode) Clone() Node {
	c := NewProcessNode(p.processType, p.inputs, p.outputs)
	c.label = p.label
	return c
}
