// Package relax defines the common relax input generator: the ports every
// engine accepts for a geometry optimization, and their decoding.
//
// Engines call Define and then Restrict to narrow the shared ports to what
// they support, before adding ports of their own.
package relax

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/ports"
	"github.com/aretw0/commonwf/pkg/schema"
)

// Workflow is the name of the common workflow in entry-point names.
const Workflow = "relax"

// FeatureFixedMagnetization is the optional ability to keep the total magnetization fixed.
const FeatureFixedMagnetization generator.Feature = "fixed_magnetization"

// DefaultProtocols are the protocol names every engine is expected to provide.
var DefaultProtocols = []string{"fast", "moderate", "precise"}

// Restrictions narrow the shared ports for one engine.
// Empty fields leave the corresponding port untouched.
type Restrictions struct {
	Protocols []string
	// DefaultProtocol replaces the default of `protocol`. It must be one of Protocols.
	DefaultProtocol string

	SpinTypes       []domain.SpinType
	RelaxTypes      []domain.RelaxType
	ElectronicTypes []domain.ElectronicType
	// CodePlugin is the plugin the relax code must be able to run, e.g. "siesta.siesta".
	CodePlugin string
}

// Define declares the ports of the common relax workflow on spec.
func Define(spec *schema.Spec) error {
	inputs := []struct {
		name string
		opts []schema.PortOption
	}{
		{"structure", []schema.PortOption{
			schema.WithType(schema.InstanceOf[*domain.Structure]("StructureData")),
			schema.WithSerializer(LoadNode),
			schema.WithHelp("The structure whose geometry should be optimized."),
		}},
		{"protocol", []schema.PortOption{
			schema.WithType(schema.Choice(toAny(DefaultProtocols)...)),
			schema.WithDefault("moderate"),
			schema.NonDB(),
			schema.WithHelp("The protocol to use for the automated input generation. This value indicates the level " +
				"of precision of the results and computational cost that the input parameters will be selected for."),
		}},
		{"spin_type", []schema.PortOption{
			schema.WithType(schema.ChoiceOf(domain.SpinTypes()...)),
			schema.WithSerializer(enum[domain.SpinType]),
			schema.WithDefault(domain.SpinNone),
			schema.WithHelp("The type of spin polarization to be used."),
		}},
		{"relax_type", []schema.PortOption{
			schema.WithType(schema.ChoiceOf(domain.RelaxTypes()...)),
			schema.WithSerializer(enum[domain.RelaxType]),
			schema.WithDefault(domain.RelaxPositions),
			schema.WithHelp("The degrees of freedom during the geometry optimization process."),
		}},
		{"electronic_type", []schema.PortOption{
			schema.WithType(schema.ChoiceOf(domain.ElectronicTypes()...)),
			schema.WithSerializer(enum[domain.ElectronicType]),
			schema.WithDefault(domain.ElectronicMetal),
			schema.WithHelp("The electronic character of the system."),
		}},
		{"magnetization_per_site", []schema.PortOption{
			schema.WithType(schema.Slice(schema.Float())),
			schema.Optional(),
			schema.NonDB(),
			schema.WithHelp("The initial magnetization of the system. Should be a list of floats, where each float " +
				"represents the spin polarization in units of electrons, meaning the difference between spin up and " +
				"spin down electrons, for the site. This also corresponds to the magnetization of the site in Bohr " +
				"magnetons (μB)."),
		}},
		{"threshold_forces", []schema.PortOption{
			schema.WithType(schema.Float()),
			schema.Optional(),
			schema.NonDB(),
			schema.WithHelp("A real positive number indicating the target threshold for the forces in eV/Å. If not " +
				"specified, the protocol specification will select an appropriate value."),
		}},
		{"threshold_stress", []schema.PortOption{
			schema.WithType(schema.Float()),
			schema.Optional(),
			schema.NonDB(),
			schema.WithHelp("A real positive number indicating the target threshold for the stress in eV/Å^3. If not " +
				"specified, the protocol specification will select an appropriate value."),
		}},
		{"reference_workchain", []schema.PortOption{
			schema.WithType(schema.InstanceOf[*domain.ProcessNode]("WorkChainNode")),
			schema.WithSerializer(LoadNode),
			schema.Optional(),
			schema.NonDB(),
			schema.WithHelp("The node of a previously completed process of the same type whose inputs should be " +
				"taken into account when generating inputs. This is important for particular workflows where " +
				"certain inputs have to be kept constant between successive iterations."),
		}},
	}
	for _, in := range inputs {
		if err := spec.Input(in.name, in.opts...); err != nil {
			return err
		}
	}

	if err := spec.InputNamespace("engines", schema.NamespaceHelp("Inputs for the quantum engines")); err != nil {
		return err
	}
	if err := spec.InputNamespace("engines.relax",
		schema.NamespaceHelp("Inputs for the quantum engine performing the geometry optimization.")); err != nil {
		return err
	}
	if err := spec.Input("engines.relax.code",
		schema.WithType(schema.InstanceOf[*domain.Code]("Code")),
		schema.WithSerializer(LoadCode),
		schema.WithHelp("The code instance to use for the geometry optimization."),
	); err != nil {
		return err
	}
	return spec.Input("engines.relax.options",
		schema.WithType(schema.Map(nil)),
		schema.Optional(),
		schema.NonDB(),
		schema.WithHelp("Options for the geometry optimization calculation jobs."),
	)
}

type restriction struct {
	port string
	typ  schema.Type
	def  any
}

// Restrict narrows the ports declared by Define.
func Restrict(spec *schema.Spec, r Restrictions) error {
	var changes []restriction
	if len(r.Protocols) > 0 {
		c := restriction{port: "protocol", typ: schema.Choice(toAny(r.Protocols)...)}
		if r.DefaultProtocol != "" {
			c.def = r.DefaultProtocol
		}
		changes = append(changes, c)
	}
	if len(r.SpinTypes) > 0 {
		changes = append(changes, restriction{port: "spin_type", typ: schema.ChoiceOf(r.SpinTypes...)})
	}
	if len(r.RelaxTypes) > 0 {
		changes = append(changes, restriction{port: "relax_type", typ: schema.ChoiceOf(r.RelaxTypes...)})
	}
	if len(r.ElectronicTypes) > 0 {
		changes = append(changes, restriction{port: "electronic_type", typ: schema.ChoiceOf(r.ElectronicTypes...)})
	}
	if r.CodePlugin != "" {
		changes = append(changes, restriction{port: "engines.relax.code", typ: schema.Code(r.CodePlugin)})
	}

	for _, c := range changes {
		port, ok := spec.Port(c.port)
		if !ok {
			return fmt.Errorf("cannot restrict port `%s`: not defined", c.port)
		}
		if c.def != nil {
			if err := port.SetTypeAndDefault(c.typ, c.def); err != nil {
				return err
			}
			continue
		}
		if err := port.SetType(c.typ); err != nil {
			return err
		}
	}
	return nil
}

// OptionalFeatures lists the optional features of the relax workflow.
func OptionalFeatures() []generator.Feature {
	return []generator.Feature{FeatureFixedMagnetization}
}

// enum converts a plain string into the named string type T so that choice
// membership can be checked. Other values pass through untouched.
func enum[T ~string](_ context.Context, value any) (any, error) {
	if s, ok := value.(string); ok {
		return T(s), nil
	}
	return value, nil
}

// LoadNode resolves a string identifier (UUID or label) through the loader
// attached to ctx. Non-string values pass through untouched.
func LoadNode(ctx context.Context, value any) (any, error) {
	id, ok := value.(string)
	if !ok {
		return value, nil
	}
	loader, ok := ports.LoaderFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("cannot load `%s`: no node loader configured", id)
	}
	node, err := loader.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cannot load `%s`: %w", id, err)
	}
	return node, nil
}

// LoadCode is LoadNode restricted to codes.
func LoadCode(ctx context.Context, value any) (any, error) {
	v, err := LoadNode(ctx, value)
	if err != nil {
		return nil, err
	}
	if _, isString := value.(string); isString {
		if _, ok := v.(*domain.Code); !ok {
			return nil, fmt.Errorf("node `%s` is not a code but a %T", value, v)
		}
	}
	return v, nil
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Inputs are the validated arguments of the common relax workflow.
type Inputs struct {
	Structure            *domain.Structure
	Protocol             string
	SpinType             domain.SpinType
	RelaxType            domain.RelaxType
	ElectronicType       domain.ElectronicType
	MagnetizationPerSite []float64
	ThresholdForces      *float64
	ThresholdStress      *float64
	ReferenceWorkchain   *domain.ProcessNode
	Code                 *domain.Code
	Options              map[string]any
}

// ParseInputs extracts the common relax arguments from args, which must have
// been validated against a spec built with Define.
func ParseInputs(args map[string]any) (Inputs, error) {
	var in Inputs
	var ok bool

	if in.Structure, ok = args["structure"].(*domain.Structure); !ok {
		return in, fmt.Errorf("`structure` is required")
	}
	in.Protocol, _ = args["protocol"].(string)
	in.SpinType, _ = args["spin_type"].(domain.SpinType)
	in.RelaxType, _ = args["relax_type"].(domain.RelaxType)
	in.ElectronicType, _ = args["electronic_type"].(domain.ElectronicType)
	in.ReferenceWorkchain, _ = args["reference_workchain"].(*domain.ProcessNode)

	if v, present := args["magnetization_per_site"]; present && v != nil {
		m, err := floatSlice(v)
		if err != nil {
			return in, fmt.Errorf("`magnetization_per_site`: %w", err)
		}
		in.MagnetizationPerSite = m
	}
	for key, dst := range map[string]**float64{"threshold_forces": &in.ThresholdForces, "threshold_stress": &in.ThresholdStress} {
		if v, present := args[key]; present && v != nil {
			f, err := toFloat(v)
			if err != nil {
				return in, fmt.Errorf("`%s`: %w", key, err)
			}
			*dst = &f
		}
	}

	engines, _ := args["engines"].(map[string]any)
	relax, ok := engines["relax"].(map[string]any)
	if !ok {
		return in, fmt.Errorf("the `engines` namespace must contain `relax` as outermost key")
	}
	if in.Code, ok = relax["code"].(*domain.Code); !ok {
		return in, fmt.Errorf("`engines.relax.code` is required")
	}
	in.Options = map[string]any{}
	if v, present := relax["options"]; present && v != nil {
		if err := mapstructure.Decode(v, &in.Options); err != nil {
			return in, fmt.Errorf("`engines.relax.options`: %w", err)
		}
	}
	return in, nil
}

func floatSlice(v any) ([]float64, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list of floats, got %T", v)
	}
	out := make([]float64, rv.Len())
	for i := range out {
		f, err := toFloat(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected float, got %T", v)
	}
}
