package schema

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mohae/deepcopy"
)

// Serializer canonicalizes a raw value before validation, e.g. a label into a stored node.
type Serializer func(ctx context.Context, value any) (any, error)

// Entry is a member of a namespace: either a *Port or a *Namespace.
type Entry interface {
	Name() string
	Help() string
}

// Port is a named, typed slot of a generator's accepted arguments.
type Port struct {
	name       string
	typ        Type
	required   bool
	hasDefault bool
	def        any
	help       string
	nonDB      bool
	serializer Serializer
}

// PortOption configures a Port.
type PortOption func(*Port)

// WithType sets the valid type. Without one, every value passes the type check.
func WithType(t Type) PortOption {
	return func(p *Port) { p.typ = t }
}

// WithDefault sets the value filled in by PreProcess when the port is absent.
func WithDefault(v any) PortOption {
	return func(p *Port) {
		p.def = v
		p.hasDefault = true
	}
}

// Optional marks the port as not required.
func Optional() PortOption {
	return func(p *Port) { p.required = false }
}

// WithHelp attaches a description.
func WithHelp(help string) PortOption {
	return func(p *Port) { p.help = help }
}

// WithSerializer sets the function applied to the value by Serialize.
func WithSerializer(s Serializer) PortOption {
	return func(p *Port) { p.serializer = s }
}

// NonDB marks a port whose value is passed through as-is rather than stored.
func NonDB() PortOption {
	return func(p *Port) { p.nonDB = true }
}

// NewPort creates a required port. It fails if the port declares an empty choice
// set, or a default that is not a member of its choices.
func NewPort(name string, opts ...PortOption) (*Port, error) {
	if name == "" {
		return nil, fmt.Errorf("port name is required")
	}
	p := &Port{name: name, required: true}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.checkChoices(p.typ); err != nil {
		return nil, err
	}
	return p, nil
}

// SetType replaces the valid type, e.g. to narrow the choices of a shared port
// in an engine-specific spec. The default must remain a valid choice.
func (p *Port) SetType(t Type) error {
	if err := p.checkChoices(t); err != nil {
		return err
	}
	p.typ = t
	return nil
}

// SetTypeAndDefault replaces the valid type and the default together. The
// default must be a valid choice of t.
func (p *Port) SetTypeAndDefault(t Type, def any) error {
	next := *p
	next.def, next.hasDefault = def, true
	if err := next.checkChoices(t); err != nil {
		return err
	}
	p.typ, p.def, p.hasDefault = t, def, true
	return nil
}

func (p *Port) checkChoices(t Type) error {
	ct, ok := t.(*ChoiceType)
	if !ok {
		return nil
	}
	if len(ct.choices) == 0 {
		return fmt.Errorf("port `%s`: choices must not be empty", p.name)
	}
	if p.hasDefault && !ct.Contains(p.def) {
		return fmt.Errorf("port `%s`: default %v is not one of the choices %v", p.name, p.def, ct.choices)
	}
	return nil
}

func (p *Port) Name() string { return p.name }
func (p *Port) Help() string { return p.help }

// Type returns the valid type, or nil when unrestricted.
func (p *Port) Type() Type { return p.typ }

// Required reports whether a value must be present after pre-processing.
func (p *Port) Required() bool { return p.required }

// NonDB reports whether the value bypasses storage.
func (p *Port) NonDB() bool { return p.nonDB }

// Default returns a fresh copy of the default value.
func (p *Port) Default() (any, bool) {
	if !p.hasDefault {
		return nil, false
	}
	return deepcopy.Copy(p.def), true
}

// Serialize applies the port serializer, if any.
func (p *Port) Serialize(ctx context.Context, value any) (any, error) {
	if p.serializer == nil || value == nil {
		return value, nil
	}
	return p.serializer(ctx, value)
}

// Validate checks a candidate value in three steps: the base type, then the
// capability of codes, then membership of choices. A nil value means unset.
// breadcrumb is the full dotted path of the port, used in the error.
func (p *Port) Validate(value any, breadcrumb string) *PortValidationError {
	if value == nil {
		if p.required {
			return &PortValidationError{Port: breadcrumb, Message: "required value was not provided"}
		}
		return nil
	}
	if isNilPointer(value) {
		return &PortValidationError{Port: breadcrumb, Message: fmt.Sprintf("invalid type: nil %T", value)}
	}
	if p.typ == nil {
		return nil
	}
	if err := p.typ.Validate(value); err != nil {
		return &PortValidationError{Port: breadcrumb, Message: fmt.Sprintf("invalid type: %v", err)}
	}
	switch t := p.typ.(type) {
	case *CodeType:
		if !t.Accepts(value) {
			return &PortValidationError{
				Port:    breadcrumb,
				Message: fmt.Sprintf("invalid plugin `%s` for code `%v`, `%s` is required", value.(Capable).Capability(), value, t.plugin),
			}
		}
	case *ChoiceType:
		if !t.Contains(value) {
			return &PortValidationError{
				Port:    breadcrumb,
				Message: fmt.Sprintf("`%v` is not a valid choice. Valid choices are: %s", value, t.describe()),
			}
		}
	}
	return nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
