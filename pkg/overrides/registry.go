package overrides

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/ports"
	"github.com/aretw0/commonwf/pkg/schema"
)

// Group is the plugin group generic overrides are registered under.
const Group = "acwf.overrides"

// Func is the implementation of a named override.
// args has been checked against the override's Args schema.
type Func func(ctx context.Context, b ports.Builder, args map[string]any) error

// Definition describes a named override.
type Definition struct {
	Name string `json:"name" yaml:"name"`
	Help string `json:"help,omitempty" yaml:"help,omitempty"`
	// Args lists the required arguments and their types.
	Args schema.Schema `json:"args" yaml:"args"`
	Run  Func          `json:"-" yaml:"-"`
}

// Override is one requested application: a name and its arguments.
type Override struct {
	Name string         `json:"name" yaml:"name" mapstructure:"name"`
	Args map[string]any `json:"args" yaml:"args" mapstructure:"args"`
}

// Registry manages the available overrides.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	loader ports.NodeLoader
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader sets the node loader used by generic.add_or_replace_node.
func WithLoader(l ports.NodeLoader) Option {
	return func(r *Registry) { r.loader = l }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Registry) { r.hooks = hooks }
}

// NewRegistry creates a registry holding the generic overrides.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, def := range r.generic() {
		r.defs[def.Name] = def
	}
	return r
}

// Register adds an override. Names must be unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || def.Run == nil {
		return fmt.Errorf("override definition requires a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("override %q is already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Names returns the registered override names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the registered definitions, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Apply looks up an override by name, checks its arguments and runs it.
func (r *Registry) Apply(ctx context.Context, b ports.Builder, o Override) (err error) {
	def, ok := r.Get(o.Name)
	if !ok {
		return fmt.Errorf("override not found: %s", o.Name)
	}
	port, _ := o.Args["port"].(string)
	defer func() {
		r.hooks.EmitOverride(ctx, &domain.OverrideEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventOverrideApplied},
			Override:  o.Name,
			Port:      port,
			Err:       err,
		})
	}()

	if err := schema.Validate(def.Args, o.Args); err != nil {
		return &InvalidOverrideError{Override: o.Name, Reason: "invalid arguments", Err: err}
	}
	if err := def.Run(ctx, b, o.Args); err != nil {
		return err
	}
	r.logger.Debug("override applied", "override", o.Name, "port", port)
	return nil
}

// ApplyAll applies overrides in order and stops at the first failure.
func (r *Registry) ApplyAll(ctx context.Context, b ports.Builder, overrides []Override) error {
	for i, o := range overrides {
		if err := r.Apply(ctx, b, o); err != nil {
			return fmt.Errorf("override %d (%s): %w", i, o.Name, err)
		}
	}
	return nil
}

type updateDictArgs struct {
	Port       string         `mapstructure:"port"`
	Dictionary map[string]any `mapstructure:"dictionary"`
	SubPath    []string       `mapstructure:"sub_path"`
}

type addOrReplaceArgs struct {
	Port    string `mapstructure:"port"`
	NewNode any    `mapstructure:"new_node"`
}

type removeNodeArgs struct {
	Port string `mapstructure:"port"`
}

// portName is the type of the `port` argument: a non-empty dotted key.
var portName = schema.Custom("port", func(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	if s == "" {
		return fmt.Errorf("must be a non-empty string")
	}
	return nil
})

// nodeOrIdentifier is the type of `new_node`: a node, or the UUID or label of a stored one.
var nodeOrIdentifier = schema.OneOf(schema.String(), schema.InstanceOf[domain.Node]("Node"))

func (r *Registry) generic() []Definition {
	return []Definition{
		{
			Name: "generic." + nameUpdateDict,
			Help: "Merge `dictionary` into the Dict at `port`, optionally at the nested `sub_path`.",
			Args: schema.Schema{"port": portName, "dictionary": schema.Map(nil)},
			Run: func(_ context.Context, b ports.Builder, args map[string]any) error {
				var a updateDictArgs
				if err := decode(nameUpdateDict, args, &a); err != nil {
					return err
				}
				return UpdateDict(b, a.Port, a.Dictionary, a.SubPath...)
			},
		},
		{
			Name: "generic." + nameAddOrReplaceNode,
			Help: "Replace the value at `port` with `new_node`, a node or the UUID or label of a stored one.",
			Args: schema.Schema{"port": portName, "new_node": nodeOrIdentifier},
			Run: func(ctx context.Context, b ports.Builder, args map[string]any) error {
				var a addOrReplaceArgs
				if err := decode(nameAddOrReplaceNode, args, &a); err != nil {
					return err
				}
				if node, ok := a.NewNode.(domain.Node); ok {
					return ReplaceNode(b, a.Port, node)
				}
				id, _ := a.NewNode.(string)
				return AddOrReplaceNode(ctx, b, r.loader, a.Port, id)
			},
		},
		{
			Name: "generic." + nameRemoveNode,
			Help: "Remove `port` from the builder.",
			Args: schema.Schema{"port": portName},
			Run: func(_ context.Context, b ports.Builder, args map[string]any) error {
				var a removeNodeArgs
				if err := decode(nameRemoveNode, args, &a); err != nil {
					return err
				}
				return RemoveNode(b, a.Port)
			},
		},
	}
}

// decode maps loosely typed arguments onto a struct. A single string
// sub_path is accepted as a one-element path; unknown arguments are rejected.
func decode(override string, args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return &InvalidOverrideError{Override: override, Reason: "invalid arguments", Err: err}
	}
	return nil
}
