package generator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/ports"
	"github.com/aretw0/commonwf/pkg/schema"
)

// Implementation is the engine-specific part of an input generator.
type Implementation interface {
	// Define declares the accepted arguments. It is called once per implementation type.
	Define(spec *schema.Spec) error
	// ConstructBuilder translates validated, serialized arguments into a builder.
	ConstructBuilder(ctx context.Context, args map[string]any) (*builder.Builder, error)
}

// specKey identifies a cached spec: the implementation type and, for
// protocol-backed implementations, the protocol table it was defined against.
type specKey struct {
	typ       reflect.Type
	protocols string
}

var (
	specMu    sync.Mutex
	specCache = make(map[specKey]*schema.Spec)
)

// InputGenerator runs the argument pipeline of one Implementation.
// It holds no mutable state and is safe for concurrent use.
type InputGenerator struct {
	impl    Implementation
	process string
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	loader  ports.NodeLoader
}

// Option configures an InputGenerator.
type Option func(*InputGenerator)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *InputGenerator) {
		g.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(g *InputGenerator) {
		g.hooks = hooks
	}
}

// WithLoader sets the node loader that serializers and ConstructBuilder reach
// through ports.LoaderFromContext, e.g. to resolve a code label.
func WithLoader(loader ports.NodeLoader) Option {
	return func(g *InputGenerator) {
		g.loader = loader
	}
}

// New creates a generator for impl. process names the workflow the builders target.
func New(impl Implementation, process string, opts ...Option) (*InputGenerator, error) {
	if impl == nil {
		return nil, fmt.Errorf("invalid input generator: implementation is nil")
	}
	if process == "" {
		return nil, fmt.Errorf("invalid input generator `%T`: required argument `process` was not defined", impl)
	}
	g := &InputGenerator{impl: impl, process: process}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	g.logger = g.logger.With("process", process)
	return g, nil
}

// Process returns the workflow type the builders target.
func (g *InputGenerator) Process() string { return g.process }

// Implementation returns the engine-specific implementation.
func (g *InputGenerator) Implementation() Implementation { return g.impl }

// Spec returns the accepted-argument spec, building it on first use.
// The spec is cached per implementation type and protocol table; when Define
// fails nothing is cached.
func (g *InputGenerator) Spec() (*schema.Spec, error) {
	return SpecFor(g.impl)
}

// SpecFor returns the cached spec of impl, calling Define on a miss.
func SpecFor(impl Implementation) (*schema.Spec, error) {
	key := specKey{typ: reflect.TypeOf(impl)}
	if pp, ok := impl.(ProtocolProvider); ok {
		if r := pp.Protocols(); r != nil {
			key.protocols = r.Name() + "|" + r.DefaultName() + "|" + strings.Join(r.Names(), ",")
		}
	}

	specMu.Lock()
	defer specMu.Unlock()

	if spec, ok := specCache[key]; ok {
		return spec, nil
	}
	spec := schema.NewSpec()
	if err := impl.Define(spec); err != nil {
		return nil, fmt.Errorf("failed to define spec of `%T`: %w", impl, err)
	}
	specCache[key] = spec
	return spec, nil
}

// GetBuilder validates kwargs against the spec and constructs a builder.
// kwargs is not modified. On a validation failure a *ValidationError is
// returned and ConstructBuilder is not called.
func (g *InputGenerator) GetBuilder(ctx context.Context, kwargs map[string]any) (b *builder.Builder, err error) {
	start := time.Now()
	defer func() {
		g.hooks.EmitBuilder(ctx, &domain.BuilderEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventBuilderGenerated},
			Generator: fmt.Sprintf("%T", g.impl),
			Process:   g.process,
			Duration:  time.Since(start),
			Err:       err,
		})
	}()

	spec, err := g.Spec()
	if err != nil {
		return nil, err
	}
	ctx = ports.ContextWithLoader(ctx, g.loader)
	inputs := spec.Inputs()

	copied, _ := CopyExcept(kwargs, KeepStored).(map[string]any)
	processed := inputs.PreProcess(copied)
	serialized, err := inputs.Serialize(ctx, processed)
	if err != nil {
		return nil, err
	}
	if verr := inputs.Validate(serialized); verr != nil {
		g.logger.Debug("inputs rejected", "ports", schema.Breadcrumbs(verr))
		return nil, &ValidationError{Generator: g.process, Err: verr}
	}

	b, err = g.impl.ConstructBuilder(ctx, serialized)
	if err != nil {
		return nil, fmt.Errorf("failed to construct builder for `%s`: %w", g.process, err)
	}
	g.logger.Debug("builder constructed", "ports", b.Len())
	return b, nil
}
