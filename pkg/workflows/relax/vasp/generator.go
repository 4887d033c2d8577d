// Package vasp implements the common relax workflow for VASP.
package vasp

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/protocol"
	"github.com/aretw0/commonwf/pkg/registry"
	"github.com/aretw0/commonwf/pkg/schema"
	"github.com/aretw0/commonwf/pkg/workflows/relax"
)

const (
	// Plugin is the engine name in entry points.
	Plugin = "vasp"
	// CodePlugin is the plugin a relax code must run.
	CodePlugin = "vasp.vasp"
	// CustomProtocol selects the protocol passed through the `custom_protocol` namespace.
	CustomProtocol = "custom"
)

// Process is the workflow the generated builders target.
var Process = registry.EntryPointName(relax.Workflow, Plugin)

var (
	//go:embed protocol.yml
	protocolTable []byte
	//go:embed potential_mapping.yml
	potentialMappingTable []byte
)

// Settings is a decoded VASP protocol.
type Settings struct {
	Description      string         `mapstructure:"description"`
	Parameters       map[string]any `mapstructure:"parameters"`
	KpointDistance   float64        `mapstructure:"kpoint_distance"`
	PotentialFamily  string         `mapstructure:"potential_family"`
	PotentialMapping string         `mapstructure:"potential_mapping"`
	Relax            RelaxSettings  `mapstructure:"relax"`
}

// RelaxSettings are the ionic relaxation defaults of a protocol.
type RelaxSettings struct {
	Algo            string  `mapstructure:"algo"`
	Steps           int     `mapstructure:"steps"`
	ThresholdForces float64 `mapstructure:"threshold_forces"`
}

// Generator builds VASP relax inputs.
type Generator struct {
	protocols *protocol.Registry
	mappings  map[string]map[string]string
	logger    *slog.Logger
}

var (
	_ generator.Implementation   = (*Generator)(nil)
	_ generator.FeatureProvider  = (*Generator)(nil)
	_ generator.ProtocolProvider = (*Generator)(nil)
)

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a generator backed by the embedded protocol and potential mapping tables.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := yaml.Unmarshal(potentialMappingTable, &g.mappings); err != nil {
		return nil, fmt.Errorf("failed to parse potential mappings: %w", err)
	}
	r, err := protocol.Load("VaspCommonRelaxInputGenerator", protocolTable, protocol.WithValidator(g.validateProtocol))
	if err != nil {
		return nil, err
	}
	g.protocols = r
	return g, nil
}

// Protocols returns the protocol registry.
func (g *Generator) Protocols() *protocol.Registry { return g.protocols }

// PotentialMapping returns the element to potential mapping registered under name.
func (g *Generator) PotentialMapping(name string) (map[string]string, bool) {
	m, ok := g.mappings[name]
	return m, ok
}

func (g *Generator) OptionalFeatures() []generator.Feature { return relax.OptionalFeatures() }
func (g *Generator) SupportedFeatures() []generator.Feature { return nil }

// Define declares the common relax ports restricted to what VASP supports,
// plus `custom_protocol`.
func (g *Generator) Define(spec *schema.Spec) error {
	if err := relax.Define(spec); err != nil {
		return err
	}
	if err := relax.Restrict(spec, relax.Restrictions{
		Protocols:       append(g.protocols.Names(), CustomProtocol),
		DefaultProtocol: g.protocols.DefaultName(),
		SpinTypes:       []domain.SpinType{domain.SpinNone, domain.SpinCollinear},
		RelaxTypes:      domain.RelaxTypes(),
		ElectronicTypes: []domain.ElectronicType{domain.ElectronicMetal, domain.ElectronicInsulator},
		CodePlugin:      CodePlugin,
	}); err != nil {
		return err
	}
	return spec.InputNamespace("custom_protocol",
		schema.Dynamic(nil),
		schema.OptionalNamespace(),
		schema.NamespaceHelp("A protocol definition used when `protocol` is set to `custom`. It must define the same keys "+
			"as the built-in protocols."),
	)
}

func (g *Generator) validateProtocol(_ string, def map[string]any) error {
	s, err := decodeSettings(def)
	if err != nil {
		return err
	}
	return g.checkSettings(s)
}

func (g *Generator) checkSettings(s Settings) error {
	switch {
	case s.Parameters == nil:
		return fmt.Errorf("does not define the mandatory key `parameters`")
	case s.KpointDistance <= 0:
		return fmt.Errorf("`kpoint_distance` must be a positive number")
	case s.PotentialFamily == "":
		return fmt.Errorf("does not define the mandatory key `potential_family`")
	}
	if _, ok := g.mappings[s.PotentialMapping]; !ok {
		return fmt.Errorf("unknown `potential_mapping` %q", s.PotentialMapping)
	}
	return nil
}

func decodeSettings(raw map[string]any) (Settings, error) {
	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return s, err
	}
	if err := dec.Decode(deepcopy.Copy(raw)); err != nil {
		return s, err
	}
	return s, nil
}

// settings resolves the named protocol, or the custom one.
func (g *Generator) settings(name string, custom map[string]any) (Settings, error) {
	if name != CustomProtocol {
		raw, err := g.protocols.Raw(name)
		if err != nil {
			return Settings{}, err
		}
		return decodeSettings(raw)
	}
	if custom == nil {
		return Settings{}, fmt.Errorf("the `custom_protocol` input must be provided when the `protocol` input is set to `custom`")
	}
	s, err := decodeSettings(custom)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid `custom_protocol`: %w", err)
	}
	if err := g.checkSettings(s); err != nil {
		return Settings{}, fmt.Errorf("invalid `custom_protocol`: %w", err)
	}
	g.logger.Debug("using custom protocol", "potential_mapping", s.PotentialMapping)
	return s, nil
}

// ConstructBuilder translates the validated arguments into VASP inputs.
func (g *Generator) ConstructBuilder(ctx context.Context, args map[string]any) (*builder.Builder, error) {
	in, err := relax.ParseInputs(args)
	if err != nil {
		return nil, err
	}
	custom, _ := args["custom_protocol"].(map[string]any)
	s, err := g.settings(in.Protocol, custom)
	if err != nil {
		return nil, err
	}
	if in.ThresholdStress != nil {
		return nil, fmt.Errorf("using a stress threshold is not directly available in VASP during relaxation")
	}

	incar := s.Parameters
	switch in.SpinType {
	case domain.SpinNone:
		incar["ispin"] = 1
	case domain.SpinCollinear:
		incar["ispin"] = 2
	}
	if in.MagnetizationPerSite != nil {
		incar["magmom"] = append([]float64(nil), in.MagnetizationPerSite...)
	}

	kpoints, err := g.kpoints(s, in)
	if err != nil {
		return nil, err
	}
	mapping := g.mappings[s.PotentialMapping]
	potentialMapping := make(map[string]any, len(mapping))
	for element, potential := range mapping {
		potentialMapping[element] = potential
	}

	b := builder.New(Process)
	err = b.SetEntries(
		builder.Entry{Key: "structure", Value: in.Structure},
		builder.Entry{Key: "verbose", Value: true},
		builder.Entry{Key: "vasp.code", Value: in.Code},
		builder.Entry{Key: "vasp.calc.metadata.options", Value: in.Options},
		builder.Entry{Key: "vasp.settings", Value: domain.NewDict(map[string]any{"parser_settings": parserSettings()})},
		builder.Entry{Key: "vasp.handler_overrides", Value: domain.NewDict(handlerOverrides())},
		builder.Entry{Key: "vasp.parameters", Value: domain.NewDict(map[string]any{"incar": incar})},
		builder.Entry{Key: "vasp.potential_family", Value: domain.NewStr(s.PotentialFamily)},
		builder.Entry{Key: "vasp.potential_mapping", Value: domain.NewDict(potentialMapping)},
		builder.Entry{Key: "vasp.kpoints", Value: kpoints},
		builder.Entry{Key: "relax_settings", Value: domain.NewDict(RelaxSettingsFor(in.RelaxType, s.Relax, in.ThresholdForces))},
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (g *Generator) kpoints(s Settings, in relax.Inputs) (*domain.Kpoints, error) {
	kpoints := domain.NewKpoints()
	if err := kpoints.SetCellFromStructure(in.Structure); err != nil {
		return nil, err
	}
	if ref := in.ReferenceWorkchain; ref != nil {
		node, _ := ref.Input("kpoints")
		previous, ok := node.(*domain.Kpoints)
		if !ok {
			return nil, fmt.Errorf("reference workchain %s has no `kpoints` input", ref.UUID())
		}
		mesh, offset, ok := previous.Mesh()
		if !ok {
			return nil, fmt.Errorf("reference workchain %s: `kpoints` input has no mesh", ref.UUID())
		}
		if err := kpoints.SetMesh(mesh, offset); err != nil {
			return nil, err
		}
		return kpoints, nil
	}
	if err := kpoints.SetMeshFromDensity(s.KpointDistance, [3]float64{}); err != nil {
		return nil, err
	}
	return kpoints, nil
}

// RelaxSettingsFor maps a relax type onto the relaxation switches of the VASP workchain.
func RelaxSettingsFor(relaxType domain.RelaxType, defaults RelaxSettings, thresholdForces *float64) map[string]any {
	settings := map[string]any{"perform": relaxType != domain.RelaxNone}
	if relaxType != domain.RelaxNone {
		settings["algo"] = defaults.Algo
		settings["steps"] = defaults.Steps
		dof := map[domain.RelaxType][3]bool{
			domain.RelaxPositions:       {true, false, false},
			domain.RelaxCell:            {false, true, true},
			domain.RelaxVolume:          {false, false, true},
			domain.RelaxShape:           {false, true, false},
			domain.RelaxPositionsCell:   {true, true, true},
			domain.RelaxPositionsShape:  {true, true, false},
			domain.RelaxPositionsVolume: {true, false, true},
		}[relaxType]
		settings["positions"] = dof[0]
		settings["shape"] = dof[1]
		settings["volume"] = dof[2]
	}
	settings["force_cutoff"] = defaults.ThresholdForces
	if thresholdForces != nil {
		settings["force_cutoff"] = *thresholdForces
	}
	return settings
}

func parserSettings() map[string]any {
	return map[string]any{
		"energy_types": []any{"energy_extrapolated", "energy_free", "energy_no_entropy"},
		"critical_notification_errors": []any{
			"brmix", "edddav", "eddwav", "fexcp", "fock_acc", "non_collinear", "not_hermitian", "pzstein",
			"real_optlay", "rhosyg", "rspher", "set_indpw_full", "sgrcon", "no_potimm", "magmom", "bandocc",
		},
		"energy_type": []any{"energy_free", "energy_no_entropy"},
	}
}

func handlerOverrides() map[string]any {
	enabled := func(on bool) map[string]any { return map[string]any{"enabled": on} }
	return map[string]any{
		"handler_unfinished_calc_ionic_alt":   enabled(true),
		"handler_unfinished_calc_generic_alt": enabled(true),
		"handler_electronic_conv_alt":         enabled(true),
		"handler_unfinished_calc_ionic":       enabled(false),
		"handler_unfinished_calc_generic":     enabled(false),
		"handler_electronic_conv":             enabled(false),
	}
}
