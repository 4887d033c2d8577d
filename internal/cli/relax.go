package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/ports"
	"github.com/aretw0/commonwf/pkg/schema"
)

// DefaultWallclockSeconds is the per-engine walltime when none is given.
const DefaultWallclockSeconds = 3600

// RelaxOptions are the command line arguments of `launch relax`.
// Per-engine slices must have one value per engine of the workflow.
type RelaxOptions struct {
	Structure            *domain.Structure
	Codes                []string
	Protocol             string
	RelaxType            string
	ElectronicType       string
	SpinType             string
	ThresholdForces      *float64
	ThresholdStress      *float64
	MagnetizationPerSite []float64
	ReferenceWorkchain   string

	NumberMachines           []int
	NumberMPIProcsPerMachine []int
	NumberCoresPerMPIProc    []int
	WallclockSeconds         []int

	EngineOptions any

	// OptionalFeatures must all be supported by the engine.
	OptionalFeatures []string
}

// UsageError reports an invalid command line parameter.
type UsageError struct {
	Param   string
	Message string
}

func (e *UsageError) Error() string {
	if e.Param == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid value for %s: %s", e.Param, e.Message)
}

// Engines returns the engine steps of a workflow in declaration order.
func Engines(spec *schema.Spec) ([]string, error) {
	ns, ok := spec.Namespace("engines")
	if !ok {
		return nil, fmt.Errorf("the workflow does not declare an `engines` namespace")
	}
	return ns.Keys(), nil
}

// ValidateEngineOptions checks that options is a mapping keyed by known engines.
func ValidateEngineOptions(options any, engines []string) error {
	if options == nil {
		return nil
	}
	m, ok := options.(map[string]any)
	if !ok {
		return &UsageError{Param: "engine-options", Message: fmt.Sprintf("You must pass a dictionary in JSON format (it is now %T)", options)}
	}
	known := make(map[string]bool, len(engines))
	for _, e := range engines {
		known[e] = true
	}
	var unknown []string
	for name := range m {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &UsageError{Param: "engine-options", Message: fmt.Sprintf("You are passing unknown engine types: %v", unknown)}
	}
	return nil
}

// RelaxInputs turns the command line arguments into the keyword arguments of
// the relax input generator. Codes are taken from opts.Codes when one runs the
// engine's plugin, otherwise the first matching code of the store is used.
func RelaxInputs(ctx context.Context, gen *generator.InputGenerator, store ports.NodeStore, opts RelaxOptions) (map[string]any, error) {
	if err := gen.ValidateOptionalFeatures(opts.OptionalFeatures...); err != nil {
		return nil, &UsageError{Param: "optional-feature", Message: err.Error()}
	}
	spec, err := gen.Spec()
	if err != nil {
		return nil, err
	}
	engines, err := Engines(spec)
	if err != nil {
		return nil, err
	}
	n := len(engines)

	machines := opts.NumberMachines
	if machines == nil {
		machines = repeat(1, n)
	}
	wallclock := opts.WallclockSeconds
	if wallclock == nil {
		wallclock = repeat(DefaultWallclockSeconds, n)
	}
	for _, c := range []struct {
		param  string
		values []int
	}{
		{"--number-machines", machines},
		{"--number-mpi-procs-per-machine", opts.NumberMPIProcsPerMachine},
		{"--number-cores-per-mpiproc", opts.NumberCoresPerMPIProc},
		{"--wallclock-seconds", wallclock},
	} {
		if c.values != nil && len(c.values) != n {
			return nil, &UsageError{Param: c.param, Message: fmt.Sprintf("`%s` has %d engine steps, so requires %d values", gen.Process(), n, n)}
		}
	}

	if r, ok := gen.Protocols(); ok && !r.IsValid(opts.Protocol) {
		return nil, &UsageError{Param: "protocol", Message: fmt.Sprintf("`%s` is not implemented by `%s` workflow: choose one of %v", opts.Protocol, gen.Process(), r.Names())}
	}
	if err := ValidateEngineOptions(opts.EngineOptions, engines); err != nil {
		return nil, err
	}
	engineOptions, _ := opts.EngineOptions.(map[string]any)

	given, err := loadCodes(ctx, store, opts.Codes)
	if err != nil {
		return nil, err
	}

	engineInputs := make(map[string]any, n)
	for i, engine := range engines {
		plugin := ""
		if port, ok := spec.Port("engines." + engine + ".code"); ok {
			if ct, ok := port.Type().(*schema.CodeType); ok {
				plugin = ct.Plugin()
			}
		}
		code, err := findCode(ctx, store, given, plugin)
		if err != nil {
			return nil, err
		}

		resources := map[string]any{"num_machines": machines[i]}
		options := map[string]any{
			"resources":             resources,
			"max_wallclock_seconds": wallclock[i],
		}
		if extra, ok := engineOptions[engine].(map[string]any); ok {
			for k, v := range extra {
				options[k] = v
			}
		}
		if opts.NumberMPIProcsPerMachine != nil {
			resources["num_mpiprocs_per_machine"] = opts.NumberMPIProcsPerMachine[i]
			if opts.NumberMPIProcsPerMachine[i] > 1 {
				options["withmpi"] = true
			}
		}
		if opts.NumberCoresPerMPIProc != nil {
			resources["num_cores_per_mpiproc"] = opts.NumberCoresPerMPIProc[i]
		}
		engineInputs[engine] = map[string]any{"code": code.UUID(), "options": options}
	}

	inputs := map[string]any{
		"structure":       opts.Structure,
		"engines":         engineInputs,
		"protocol":        opts.Protocol,
		"spin_type":       opts.SpinType,
		"relax_type":      opts.RelaxType,
		"electronic_type": opts.ElectronicType,
	}
	if opts.ThresholdForces != nil {
		inputs["threshold_forces"] = *opts.ThresholdForces
	}
	if opts.ThresholdStress != nil {
		inputs["threshold_stress"] = *opts.ThresholdStress
	}
	if opts.MagnetizationPerSite != nil {
		inputs["magnetization_per_site"] = opts.MagnetizationPerSite
	}
	if opts.ReferenceWorkchain != "" {
		inputs["reference_workchain"] = opts.ReferenceWorkchain
	}
	return inputs, nil
}

func loadCodes(ctx context.Context, store ports.NodeLoader, identifiers []string) ([]*domain.Code, error) {
	codes := make([]*domain.Code, 0, len(identifiers))
	for _, id := range identifiers {
		node, err := store.Load(ctx, id)
		if err != nil {
			return nil, &UsageError{Param: "--code", Message: err.Error()}
		}
		code, ok := node.(*domain.Code)
		if !ok {
			return nil, &UsageError{Param: "--code", Message: fmt.Sprintf("node `%s` is not a code but a %s", id, node.TypeName())}
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// findCode returns the first given code running plugin, falling back to the store.
func findCode(ctx context.Context, store ports.NodeStore, given []*domain.Code, plugin string) (*domain.Code, error) {
	for _, c := range given {
		if plugin == "" || c.Capability() == plugin {
			return c, nil
		}
	}

	ids, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	for _, id := range ids {
		node, err := store.Load(ctx, id)
		if errors.Is(err, domain.ErrNodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if c, ok := node.(*domain.Code); ok && (plugin == "" || c.Capability() == plugin) {
			return c, nil
		}
	}
	return nil, &UsageError{Message: fmt.Sprintf("could not find a configured code for the plugin `%s`. "+
		"Either provide it with the --code option or make sure such a code is configured in the store.", plugin)}
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
