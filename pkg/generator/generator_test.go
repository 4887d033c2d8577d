package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/schema"
)

type echoGenerator struct {
	constructed int
}

func (e *echoGenerator) Define(spec *schema.Spec) error {
	if err := spec.Input("structure", schema.WithType(schema.InstanceOf[*domain.Structure]("Structure"))); err != nil {
		return err
	}
	if err := spec.Input("protocol", schema.WithType(schema.Choice("fast", "moderate", "precise")), schema.WithDefault("moderate")); err != nil {
		return err
	}
	if err := spec.Input("parameters", schema.WithType(schema.InstanceOf[*domain.Dict]("Dict")), schema.Optional()); err != nil {
		return err
	}
	return spec.Input("options.settings", schema.WithType(schema.Map(nil)), schema.Optional())
}

func (e *echoGenerator) ConstructBuilder(_ context.Context, args map[string]any) (*builder.Builder, error) {
	e.constructed++
	b := builder.New("echo")
	for k, v := range args {
		if err := b.Set(k, v); err != nil {
			return nil, err
		}
	}
	// Mutate whatever was handed over to prove the caller's arguments are isolated.
	if opts, ok := args["options"].(map[string]any); ok {
		if settings, ok := opts["settings"].(map[string]any); ok {
			settings["touched"] = true
		}
	}
	if d, ok := args["parameters"].(*domain.Dict); ok && !d.IsStored() {
		_ = d.Set("touched", true)
	}
	return b, nil
}

func structure(t *testing.T) *domain.Structure {
	t.Helper()
	s := domain.NewStructure([3][3]float64{{4, 0, 0}, {0, 4, 0}, {0, 0, 4}})
	require.NoError(t, s.AppendAtom("Al", [3]float64{}, ""))
	return s
}

func TestNew_RequiresProcess(t *testing.T) {
	_, err := New(&echoGenerator{}, "")
	assert.ErrorContains(t, err, "required argument `process`")

	_, err = New(nil, "echo")
	assert.Error(t, err)
}

func TestGetBuilder_DoesNotMutateArguments(t *testing.T) {
	impl := &echoGenerator{}
	g, err := New(impl, "echo")
	require.NoError(t, err)

	stored := domain.NewDict(map[string]any{"mesh-cutoff": "200 Ry"})
	stored.MarkStored()
	s := structure(t)
	kwargs := map[string]any{
		"structure": s,
		"options":   map[string]any{"settings": map[string]any{"nested": map[string]any{"a": 1}}},
	}

	for i := 0; i < 3; i++ {
		b, err := g.GetBuilder(context.Background(), kwargs)
		require.NoError(t, err)
		assert.Equal(t, "moderate", mustGet(t, b, "protocol"))
	}
	assert.Equal(t, 3, impl.constructed)
	assert.Equal(t, map[string]any{
		"structure": s,
		"options":   map[string]any{"settings": map[string]any{"nested": map[string]any{"a": 1}}},
	}, kwargs)

	unstored := domain.NewDict(map[string]any{"a": 1})
	kwargs = map[string]any{"structure": s, "parameters": unstored}
	_, err = g.GetBuilder(context.Background(), kwargs)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, unstored.AsMap())

	kwargs["parameters"] = stored
	b, err := g.GetBuilder(context.Background(), kwargs)
	require.NoError(t, err)
	assert.Same(t, stored, mustGet(t, b, "parameters"), "stored nodes are passed by reference")
}

func TestGetBuilder_Validation(t *testing.T) {
	impl := &echoGenerator{}
	g, err := New(impl, "echo")
	require.NoError(t, err)

	_, err = g.GetBuilder(context.Background(), map[string]any{"protocol": "bogus"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"structure", "protocol"}, verr.Ports())
	assert.Zero(t, impl.constructed, "no builder on failure")

	_, err = g.GetBuilder(context.Background(), map[string]any{"structure": structure(t), "unknown": 1})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"unknown"}, verr.Ports())
}

func TestGetBuilder_Idempotent(t *testing.T) {
	g, err := New(&echoGenerator{}, "echo")
	require.NoError(t, err)
	kwargs := map[string]any{"structure": structure(t), "protocol": "fast"}

	first, err := g.GetBuilder(context.Background(), kwargs)
	require.NoError(t, err)
	second, err := g.GetBuilder(context.Background(), kwargs)
	require.NoError(t, err)

	a, err := first.MarshalJSON()
	require.NoError(t, err)
	b, err := second.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestGetBuilder_Hooks(t *testing.T) {
	var events []*domain.BuilderEvent
	hooks := domain.LifecycleHooks{
		OnBuilderGenerated: func(_ context.Context, e *domain.BuilderEvent) { events = append(events, e) },
	}
	g, err := New(&echoGenerator{}, "echo", WithLifecycleHooks(hooks))
	require.NoError(t, err)

	_, err = g.GetBuilder(context.Background(), map[string]any{"structure": structure(t)})
	require.NoError(t, err)
	_, err = g.GetBuilder(context.Background(), nil)
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "echo", events[0].Process)
	assert.NoError(t, events[0].Err)
	assert.Error(t, events[1].Err)
}

var failDefine = true

type flakyGenerator struct{}

func (flakyGenerator) Define(spec *schema.Spec) error {
	if err := spec.Input("structure"); err != nil {
		return err
	}
	if failDefine {
		return errors.New("broken define")
	}
	return nil
}

func (flakyGenerator) ConstructBuilder(context.Context, map[string]any) (*builder.Builder, error) {
	return builder.New("flaky"), nil
}

func TestSpec_CacheClearedOnFailure(t *testing.T) {
	g, err := New(flakyGenerator{}, "flaky")
	require.NoError(t, err)

	_, err = g.Spec()
	require.ErrorContains(t, err, "broken define")

	failDefine = false
	t.Cleanup(func() { failDefine = true })

	spec, err := g.Spec()
	require.NoError(t, err, "a failed define leaves no cache entry")
	_, ok := spec.Port("structure")
	assert.True(t, ok)

	again, err := g.Spec()
	require.NoError(t, err)
	assert.Same(t, spec, again)
}

func TestCopyExcept(t *testing.T) {
	stored := domain.NewStr("stored")
	stored.MarkStored()
	fresh := domain.NewStr("fresh")

	in := map[string]any{
		"list":   []any{stored, fresh, map[string]any{"x": 1}},
		"floats": []float64{1, 2},
	}
	out := CopyExcept(in, KeepStored).(map[string]any)

	list := out["list"].([]any)
	assert.Same(t, stored, list[0])
	assert.NotSame(t, fresh, list[1])
	assert.Equal(t, "fresh", list[1].(*domain.Str).Value())

	list[2].(map[string]any)["x"] = 2
	out["floats"].([]float64)[0] = 9
	assert.Equal(t, 1, in["list"].([]any)[2].(map[string]any)["x"])
	assert.Equal(t, 1.0, in["floats"].([]float64)[0])
}

func TestCopyExcept_TypedContainers(t *testing.T) {
	stored := domain.NewDict(map[string]any{"ecut": 500})
	stored.MarkStored()
	fresh := domain.NewDict(map[string]any{"ecut": 400})

	in := map[string]any{
		"by_name": map[string]*domain.Dict{"stored": stored, "fresh": fresh},
		"nodes":   []domain.Node{stored, fresh, nil},
	}
	out := CopyExcept(in, KeepStored).(map[string]any)

	byName := out["by_name"].(map[string]*domain.Dict)
	assert.Same(t, stored, byName["stored"])
	assert.NotSame(t, fresh, byName["fresh"])
	assert.Equal(t, map[string]any{"ecut": 400}, byName["fresh"].AsMap())

	nodes := out["nodes"].([]domain.Node)
	require.Len(t, nodes, 3)
	assert.Same(t, stored, nodes[0])
	assert.NotSame(t, fresh, nodes[1])
	assert.Equal(t, map[string]any{"ecut": 400}, nodes[1].(*domain.Dict).AsMap())
	assert.Nil(t, nodes[2])

	require.NoError(t, byName["fresh"].Set("ecut", 600))
	assert.Equal(t, 400, fresh.AsMap()["ecut"])
}

func TestCopyExcept_TypedNilNode(t *testing.T) {
	var code *domain.Code
	assert.False(t, KeepStored(code))
	assert.NotPanics(t, func() {
		out := CopyExcept(map[string]any{"code": code}, KeepStored).(map[string]any)
		assert.Nil(t, out["code"])
	})
}

func mustGet(t *testing.T, b *builder.Builder, key string) any {
	t.Helper()
	v, ok := b.Get(key)
	require.True(t, ok, key)
	return v
}

type featuredGenerator struct {
	echoGenerator
}

func (f *featuredGenerator) OptionalFeatures() []Feature {
	return []Feature{"fixed_magnetization", "spin_orbit"}
}

func (f *featuredGenerator) SupportedFeatures() []Feature {
	return []Feature{"fixed_magnetization"}
}

func TestOptionalFeatures(t *testing.T) {
	gen, err := New(&featuredGenerator{}, "featured")
	require.NoError(t, err)

	assert.Equal(t, []Feature{"fixed_magnetization", "spin_orbit"}, gen.OptionalFeatures())
	assert.True(t, gen.SupportsFeature("fixed_magnetization"))
	assert.False(t, gen.SupportsFeature("spin_orbit"))
	assert.NoError(t, gen.ValidateOptionalFeatures("fixed_magnetization"))
	assert.EqualError(t, gen.ValidateOptionalFeatures("spin_orbit", "hubbard"),
		"the following optional features are not supported by `featured`: hubbard, spin_orbit")

	plain, err := New(&echoGenerator{}, "echo")
	require.NoError(t, err)
	assert.Nil(t, plain.OptionalFeatures())
	assert.Error(t, plain.ValidateOptionalFeatures("fixed_magnetization"))
}
