// Package siesta implements the common relax workflow for the SIESTA code.
package siesta

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mohae/deepcopy"

	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/ports"
	"github.com/aretw0/commonwf/pkg/protocol"
	"github.com/aretw0/commonwf/pkg/registry"
	"github.com/aretw0/commonwf/pkg/schema"
	"github.com/aretw0/commonwf/pkg/workflows/relax"
)

const (
	// Plugin is the engine name in entry points.
	Plugin = "siesta"
	// CodePlugin is the plugin a relax code must run.
	CodePlugin = "siesta.siesta"
)

// Process is the workflow the generated builders target.
var Process = registry.EntryPointName(relax.Workflow, Plugin)

//go:embed protocol.yml
var protocolTable []byte

// Generator builds SIESTA relax inputs.
type Generator struct {
	protocols *protocol.Registry
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

// WithProtocols replaces the embedded protocol table.
func WithProtocols(r *protocol.Registry) Option {
	return func(g *Generator) {
		g.protocols = r
	}
}

// New creates a generator backed by the embedded protocol table.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if g.protocols == nil {
		r, err := LoadProtocols(protocolTable)
		if err != nil {
			return nil, err
		}
		g.protocols = r
	}
	return g, nil
}

// LoadProtocols parses a SIESTA protocol table, applying the engine checks.
func LoadProtocols(data []byte) (*protocol.Registry, error) {
	return protocol.Load("SiestaCommonRelaxInputGenerator", data, protocol.WithValidator(validateProtocol))
}

// Protocols returns the protocol registry.
func (g *Generator) Protocols() *protocol.Registry { return g.protocols }

func (g *Generator) OptionalFeatures() []generator.Feature { return relax.OptionalFeatures() }
func (g *Generator) SupportedFeatures() []generator.Feature { return nil }

// Define declares the common relax ports restricted to what SIESTA supports.
// The `protocol` choices and default follow the protocol table.
func (g *Generator) Define(spec *schema.Spec) error {
	if err := relax.Define(spec); err != nil {
		return err
	}
	return relax.Restrict(spec, relax.Restrictions{
		Protocols:       g.protocols.Names(),
		DefaultProtocol: g.protocols.DefaultName(),
		SpinTypes:       []domain.SpinType{domain.SpinNone, domain.SpinCollinear},
		RelaxTypes:      []domain.RelaxType{domain.RelaxNone, domain.RelaxPositions, domain.RelaxPositionsCell, domain.RelaxPositionsShape},
		ElectronicTypes: []domain.ElectronicType{domain.ElectronicMetal, domain.ElectronicInsulator},
		CodePlugin:      CodePlugin,
	})
}

// ConstructBuilder translates the validated arguments into SIESTA inputs.
func (g *Generator) ConstructBuilder(ctx context.Context, args map[string]any) (*builder.Builder, error) {
	in, err := relax.ParseInputs(args)
	if err != nil {
		return nil, err
	}
	prot, err := g.protocols.Get(in.Protocol)
	if err != nil {
		return nil, err
	}
	if err := checkPseudoFamily(ctx, prot); err != nil {
		return nil, err
	}

	kpoints, err := Kpoints(prot, in.Structure, in.ReferenceWorkchain)
	if err != nil {
		return nil, err
	}
	parameters, err := Parameters(prot, in.Structure, in.ReferenceWorkchain)
	if err != nil {
		return nil, err
	}
	applyRelaxOptions(parameters, in)
	g.applySpin(parameters, in)

	entries := []builder.Entry{
		{Key: "structure", Value: in.Structure},
		{Key: "basis", Value: domain.NewDict(Basis(prot, in.Structure))},
		{Key: "parameters", Value: domain.NewDict(parameters)},
	}
	if kpoints != nil {
		entries = append(entries, builder.Entry{Key: "kpoints", Value: kpoints})
	}
	entries = append(entries,
		builder.Entry{Key: "pseudo_family", Value: domain.NewStr(prot.PseudoFamily)},
		builder.Entry{Key: "options", Value: domain.NewDict(in.Options)},
		builder.Entry{Key: "code", Value: in.Code},
	)

	b := builder.New(Process)
	if err := b.SetEntries(entries...); err != nil {
		return nil, err
	}
	return b, nil
}

// checkPseudoFamily fails unless the protocol's pseudopotential family is a stored group.
func checkPseudoFamily(ctx context.Context, prot protocol.Protocol) error {
	missing := fmt.Errorf("protocol `%s` requires `pseudo_family` with name %s but no family with this name is loaded in the database",
		prot.Name, prot.PseudoFamily)
	loader, ok := ports.LoaderFromContext(ctx)
	if !ok {
		return missing
	}
	node, err := loader.Load(ctx, prot.PseudoFamily)
	if errors.Is(err, domain.ErrNodeNotFound) {
		return missing
	}
	if err != nil {
		return fmt.Errorf("failed to load pseudo family %s: %w", prot.PseudoFamily, err)
	}
	if _, ok := node.(*domain.Group); !ok {
		return missing
	}
	return nil
}

func applyRelaxOptions(parameters map[string]any, in relax.Inputs) {
	if in.RelaxType != domain.RelaxNone {
		parameters["md-type-of-run"] = "cg"
		parameters["md-num-cg-steps"] = 100
	}
	switch in.RelaxType {
	case domain.RelaxPositionsCell:
		parameters["md-variable-cell"] = true
	case domain.RelaxPositionsShape:
		parameters["md-variable-cell"] = true
		parameters["md-constant-volume"] = true
	}
	// zero thresholds are treated as unset
	if in.ThresholdForces != nil && *in.ThresholdForces != 0 {
		parameters["md-max-force-tol"] = formatFloat(*in.ThresholdForces) + " eV/Ang"
	}
	if in.ThresholdStress != nil && *in.ThresholdStress != 0 {
		parameters["md-max-stress-tol"] = formatFloat(*in.ThresholdStress) + " eV/Ang**3"
	}
}

func (g *Generator) applySpin(parameters map[string]any, in relax.Inputs) {
	if in.SpinType == domain.SpinCollinear {
		parameters["spin"] = "polarized"
	}
	if in.MagnetizationPerSite == nil {
		return
	}
	switch in.SpinType {
	case domain.SpinNone:
		g.logger.Warn("`magnetization_per_site` will be ignored as `spin_type` is set to none",
			"sites", len(in.MagnetizationPerSite))
	case domain.SpinCollinear:
		parameters["%block dm-init-spin"] = InitialSpinBlock(in.MagnetizationPerSite)
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return deepcopy.Copy(m).(map[string]any)
}
