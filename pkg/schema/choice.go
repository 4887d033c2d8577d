package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// ChoiceType restricts a port to an enumerated set of values.
// The admissible Go types are inferred from the choices themselves.
type ChoiceType struct {
	choices []any
	types   []reflect.Type
}

// Choice creates a choice type. Membership is checked by equality of values.
func Choice(choices ...any) *ChoiceType {
	t := &ChoiceType{choices: append([]any(nil), choices...)}
	seen := make(map[reflect.Type]bool)
	for _, c := range choices {
		rt := reflect.TypeOf(c)
		if !seen[rt] {
			seen[rt] = true
			t.types = append(t.types, rt)
		}
	}
	return t
}

// ChoiceOf creates a choice type from typed values such as an enum listing.
func ChoiceOf[T comparable](choices ...T) *ChoiceType {
	values := make([]any, len(choices))
	for i, c := range choices {
		values[i] = c
	}
	return Choice(values...)
}

// Choices returns a copy of the admissible values.
func (t *ChoiceType) Choices() []any {
	return append([]any(nil), t.choices...)
}

// Name describes the inferred value type; a homogeneous set collapses to one type.
func (t *ChoiceType) Name() string {
	names := make([]string, len(t.types))
	for i, rt := range t.types {
		names[i] = fmt.Sprint(rt)
	}
	return strings.Join(names, "|")
}

// Validate performs the type check only. Membership is checked by the port.
func (t *ChoiceType) Validate(value any) error {
	rt := reflect.TypeOf(value)
	for _, want := range t.types {
		if rt == want {
			return nil
		}
	}
	return fmt.Errorf("expected %s, got %T", t.Name(), value)
}

func (t *ChoiceType) describe() string {
	parts := make([]string, len(t.choices))
	for i, c := range t.choices {
		parts[i] = fmt.Sprint(c)
	}
	return strings.Join(parts, ", ")
}

// Contains reports whether value is one of the choices.
func (t *ChoiceType) Contains(value any) bool {
	for _, c := range t.choices {
		if reflect.DeepEqual(c, value) {
			return true
		}
	}
	return false
}

// Capable is implemented by values advertising the plugin they can run.
type Capable interface {
	Capability() string
}

// CodeType restricts a port to codes tagged with one required plugin.
type CodeType struct {
	plugin string
}

// Code creates a code type requiring the given capability tag.
// An empty tag accepts any capable value.
func Code(plugin string) *CodeType {
	return &CodeType{plugin: plugin}
}

// Plugin returns the required capability tag.
func (t *CodeType) Plugin() string { return t.plugin }

func (t *CodeType) Name() string {
	if t.plugin == "" {
		return "Code"
	}
	return fmt.Sprintf("Code<%s>", t.plugin)
}

// Validate performs the type check only. The capability is checked by the port.
func (t *CodeType) Validate(value any) error {
	if _, ok := value.(Capable); !ok || isNilPointer(value) {
		return fmt.Errorf("expected Code, got %T", value)
	}
	return nil
}

// Accepts reports whether the value advertises the required capability.
func (t *CodeType) Accepts(value any) bool {
	c, ok := value.(Capable)
	if !ok || isNilPointer(value) {
		return false
	}
	return t.plugin == "" || c.Capability() == t.plugin
}
