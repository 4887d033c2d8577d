package commonwf

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/commonwf/pkg/adapters/memory"
	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/overrides"
	"github.com/aretw0/commonwf/pkg/ports"
	"github.com/aretw0/commonwf/pkg/registry"
	"github.com/aretw0/commonwf/pkg/workflows/relax"
	"github.com/aretw0/commonwf/pkg/workflows/relax/siesta"
	"github.com/aretw0/commonwf/pkg/workflows/relax/vasp"
)

// Version is the release of the library, overridden at build time with ldflags.
var Version = "dev"

// UnavailableRelaxPlugins are the engines of the common relax workflow that are
// known but not linked into this module.
var UnavailableRelaxPlugins = []string{
	"abinit", "bigdft", "castep", "cp2k", "dftk", "fleur", "gaussian",
	"gpaw", "nwchem", "orca", "pyscf", "quantum_espresso", "wien2k",
}

// Plugins resolves the input generators of the common workflows.
type Plugins = registry.Registry[*generator.InputGenerator]

// Engine is the high-level entry point of the library.
// It owns the plugin registry, the node store and the override registry.
type Engine struct {
	plugins   *Plugins
	store     ports.NodeStore
	overrides *overrides.Registry
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore sets the node store codes, pseudopotential families and reference
// workchains are loaded from. Defaults to an empty in-memory store.
func WithStore(store ports.NodeStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithPlugins replaces the default plugin registry.
func WithPlugins(plugins *Plugins) Option {
	return func(e *Engine) {
		e.plugins = plugins
	}
}

// WithLifecycleHooks registers observability hooks, e.g. metrics.Collectors.Hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// New initializes an Engine with the built-in engines registered.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.plugins == nil {
		e.plugins = registry.New[*generator.InputGenerator]()
		if err := e.registerDefaults(); err != nil {
			return nil, err
		}
	}
	e.overrides = overrides.NewRegistry(
		overrides.WithLoader(e.store),
		overrides.WithLogger(e.logger),
		overrides.WithLifecycleHooks(e.hooks),
	)
	return e, nil
}

func (e *Engine) registerDefaults() error {
	err := e.plugins.Register(registry.CategoryWorkflows, siesta.Process, func() (*generator.InputGenerator, error) {
		impl, err := siesta.New(siesta.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		return generator.New(impl, siesta.Process, e.generatorOptions()...)
	})
	if err != nil {
		return err
	}

	err = e.plugins.Register(registry.CategoryWorkflows, vasp.Process, func() (*generator.InputGenerator, error) {
		impl, err := vasp.New(vasp.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		return generator.New(impl, vasp.Process, e.generatorOptions()...)
	})
	if err != nil {
		return err
	}

	e.plugins.DeclareWorkflows(relax.Workflow, UnavailableRelaxPlugins...)
	return nil
}

func (e *Engine) generatorOptions() []generator.Option {
	return []generator.Option{
		generator.WithLogger(e.logger),
		generator.WithLifecycleHooks(e.hooks),
		generator.WithLoader(e.store),
	}
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *Plugins { return e.plugins }

// Store returns the node store.
func (e *Engine) Store() ports.NodeStore { return e.store }

// Overrides returns the override registry.
func (e *Engine) Overrides() *overrides.Registry { return e.overrides }

// WorkflowPlugins returns the engines available for a common workflow.
func (e *Engine) WorkflowPlugins(workflow string) []string {
	return e.plugins.WorkflowNames(workflow, true)
}

// Generator resolves the input generator of a common workflow for one engine.
func (e *Engine) Generator(workflow, plugin string) (*generator.InputGenerator, error) {
	return e.plugins.LoadWorkflow(workflow, plugin)
}

// GetBuilder resolves the input generator and runs it on kwargs.
func (e *Engine) GetBuilder(ctx context.Context, workflow, plugin string, kwargs map[string]any) (*builder.Builder, error) {
	gen, err := e.Generator(workflow, plugin)
	if err != nil {
		return nil, err
	}
	b, err := gen.GetBuilder(ctx, kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", plugin, err)
	}
	e.logger.Debug("builder generated", "workflow", workflow, "plugin", plugin, "ports", len(b.Keys()))
	return b, nil
}

// ApplyOverrides applies named overrides to b in order.
func (e *Engine) ApplyOverrides(ctx context.Context, b ports.Builder, list []overrides.Override) error {
	return e.overrides.ApplyAll(ctx, b, list)
}
