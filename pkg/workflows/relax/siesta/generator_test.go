package siesta_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aretw0/commonwf/pkg/adapters/memory"
	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/protocol"
	"github.com/aretw0/commonwf/pkg/workflows/relax/siesta"
)

const heuristicsTable = `
default: moderate
protocols:
  moderate:
    description: heuristics
    parameters:
      mesh-cutoff: 100 Ry
      block Constraints: "\n%endblock Constraints"
    basis:
      pao-energy-shift: 50 meV
    pseudo_family: test-family
    atomic_heuristics:
      Fe:
        parameters:
          mesh-cutoff: 300 Ry
          grid-sampling: ' 1 0 0'
        basis:
          polarization: non-perturbative
          size: DZP
          pao-block: "Fe 1\n n=4 0 2"
      O:
        parameters:
          mesh-cutoff: 150 Ry
        basis:
          split-tail-norm: true
`

func aluminium(t *testing.T) *domain.Structure {
	t.Helper()
	s := domain.NewStructure([3][3]float64{{0, 2.025, 2.025}, {2.025, 0, 2.025}, {2.025, 2.025, 0}})
	require.NoError(t, s.AppendAtom("Al", [3]float64{}, ""))
	return s
}

func ironOxide(t *testing.T) *domain.Structure {
	t.Helper()
	s := domain.NewStructure([3][3]float64{{4.3, 0, 0}, {0, 4.3, 0}, {0, 0, 4.3}})
	require.NoError(t, s.AppendAtom("Fe", [3]float64{}, "Fe1"))
	require.NoError(t, s.AppendAtom("O", [3]float64{2.15, 2.15, 2.15}, ""))
	return s
}

type fixture struct {
	store *memory.Store
	code  *domain.Code
	gen   *generator.InputGenerator
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, opts ...siesta.Option) fixture {
	t.Helper()
	code, err := domain.NewCode("siesta-code", siesta.CodePlugin, "localhost", "/usr/bin/siesta")
	require.NoError(t, err)
	store, err := memory.NewFromNodes(
		code,
		domain.NewGroup("PseudoDojo/0.4/PBE/FR/standard/psml"),
		domain.NewGroup("test-family"),
	)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	opts = append([]siesta.Option{siesta.WithLogger(slog.New(slog.NewTextHandler(logs, nil)))}, opts...)
	impl, err := siesta.New(opts...)
	require.NoError(t, err)
	gen, err := generator.New(impl, siesta.Process, generator.WithLoader(store))
	require.NoError(t, err)
	return fixture{store: store, code: code, gen: gen, logs: logs}
}

func (f fixture) kwargs(s *domain.Structure, extra map[string]any) map[string]any {
	kwargs := map[string]any{
		"structure": s,
		"engines": map[string]any{
			"relax": map[string]any{
				"code":    "siesta-code",
				"options": map[string]any{"resources": map[string]any{"num_machines": 1}},
			},
		},
	}
	for k, v := range extra {
		kwargs[k] = v
	}
	return kwargs
}

func dict(t *testing.T, b *builder.Builder, port string) map[string]any {
	t.Helper()
	v, ok := b.Get(port)
	require.True(t, ok, port)
	d, ok := v.(*domain.Dict)
	require.True(t, ok, "%s is %T", port, v)
	return d.AsMap()
}

func TestGetBuilder_Defaults(t *testing.T) {
	f := newFixture(t)
	s := aluminium(t)

	b, err := f.gen.GetBuilder(context.Background(), f.kwargs(s, nil))
	require.NoError(t, err)
	assert.Equal(t, siesta.Process, b.Process())

	params := dict(t, b, "parameters")
	assert.Equal(t, "200 Ry", params["mesh-cutoff"])
	assert.Equal(t, "cg", params["md-type-of-run"])
	assert.Equal(t, 100, params["md-num-cg-steps"])
	assert.NotContains(t, params, "md-variable-cell")
	assert.NotContains(t, params, "spin")

	basis := dict(t, b, "basis")
	assert.Equal(t, "DZP", basis["pao-basis-size"])

	family, _ := b.Get("pseudo_family")
	assert.Equal(t, "PseudoDojo/0.4/PBE/FR/standard/psml", family.(*domain.Str).Value())

	code, _ := b.Get("code")
	assert.Same(t, f.code, code)
	structure, _ := b.Get("structure")
	assert.NotSame(t, s, structure, "unstored arguments are copied")
	assert.Equal(t, s.KindNames(), structure.(*domain.Structure).KindNames())

	kpoints, ok := b.Get("kpoints")
	require.True(t, ok)
	_, _, hasMesh := kpoints.(*domain.Kpoints).Mesh()
	assert.True(t, hasMesh)

	assert.Equal(t, map[string]any{"resources": map[string]any{"num_machines": 1}}, dict(t, b, "options"))
}

func TestGetBuilder_RelaxTypes(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		relaxType string
		want      map[string]any
		absent    []string
	}{
		{"none", map[string]any{}, []string{"md-type-of-run", "md-variable-cell"}},
		{"positions", map[string]any{"md-type-of-run": "cg"}, []string{"md-variable-cell", "md-constant-volume"}},
		{"positions_cell", map[string]any{"md-variable-cell": true}, []string{"md-constant-volume"}},
		{"positions_shape", map[string]any{"md-variable-cell": true, "md-constant-volume": true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.relaxType, func(t *testing.T) {
			b, err := f.gen.GetBuilder(context.Background(), f.kwargs(aluminium(t), map[string]any{"relax_type": tt.relaxType}))
			require.NoError(t, err)
			params := dict(t, b, "parameters")
			for k, v := range tt.want {
				assert.Equal(t, v, params[k], k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, params, k)
			}
		})
	}
}

func TestGetBuilder_Thresholds(t *testing.T) {
	f := newFixture(t)
	b, err := f.gen.GetBuilder(context.Background(), f.kwargs(aluminium(t), map[string]any{
		"threshold_forces": 0.01,
		"threshold_stress": 0.005,
	}))
	require.NoError(t, err)
	params := dict(t, b, "parameters")
	assert.Equal(t, "0.01 eV/Ang", params["md-max-force-tol"])
	assert.Equal(t, "0.005 eV/Ang**3", params["md-max-stress-tol"])
}

func TestGetBuilder_Spin(t *testing.T) {
	f := newFixture(t)

	b, err := f.gen.GetBuilder(context.Background(), f.kwargs(aluminium(t), map[string]any{
		"spin_type":              "collinear",
		"magnetization_per_site": []any{1.5},
	}))
	require.NoError(t, err)
	params := dict(t, b, "parameters")
	assert.Equal(t, "polarized", params["spin"])
	assert.Equal(t, "\n 1 1.5 \n%endblock dm-init-spin", params["%block dm-init-spin"])
	assert.Empty(t, f.logs.String())

	b, err = f.gen.GetBuilder(context.Background(), f.kwargs(aluminium(t), map[string]any{
		"magnetization_per_site": []float64{1.5},
	}))
	require.NoError(t, err)
	params = dict(t, b, "parameters")
	assert.NotContains(t, params, "spin")
	assert.NotContains(t, params, "%block dm-init-spin")
	assert.Contains(t, f.logs.String(), "level=WARN")
	assert.Contains(t, f.logs.String(), "magnetization_per_site")
}

func TestGetBuilder_RejectsUnsupportedInputs(t *testing.T) {
	f := newFixture(t)
	vasp, err := domain.NewCode("vasp-code", "vasp.vasp", "localhost", "/usr/bin/vasp")
	require.NoError(t, err)
	require.NoError(t, f.store.Save(context.Background(), vasp))

	kwargs := f.kwargs(aluminium(t), map[string]any{
		"relax_type":      "volume",
		"spin_type":       "spin_orbit",
		"electronic_type": "automatic",
		"protocol":        "custom",
	})
	kwargs["engines"].(map[string]any)["relax"].(map[string]any)["code"] = "vasp-code"

	_, err = f.gen.GetBuilder(context.Background(), kwargs)
	var verr *generator.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t,
		[]string{"protocol", "spin_type", "relax_type", "electronic_type", "engines.relax.code"},
		verr.Ports())
	assert.ErrorContains(t, err, "`volume` is not a valid choice. Valid choices are: none, positions, positions_cell, positions_shape")
	assert.ErrorContains(t, err, "invalid plugin `vasp.vasp`")
}

func TestGetBuilder_MissingPseudoFamily(t *testing.T) {
	impl, err := siesta.New()
	require.NoError(t, err)
	code, err := domain.NewCode("siesta-code", siesta.CodePlugin, "localhost", "/usr/bin/siesta")
	require.NoError(t, err)
	store, err := memory.NewFromNodes(code)
	require.NoError(t, err)
	gen, err := generator.New(impl, siesta.Process, generator.WithLoader(store))
	require.NoError(t, err)

	_, err = gen.GetBuilder(context.Background(), map[string]any{
		"structure": aluminium(t),
		"engines":   map[string]any{"relax": map[string]any{"code": "siesta-code"}},
	})
	assert.ErrorContains(t, err, "requires `pseudo_family` with name PseudoDojo/0.4/PBE/FR/standard/psml")
}

func TestGetBuilder_Heuristics(t *testing.T) {
	table, err := siesta.LoadProtocols([]byte(heuristicsTable))
	require.NoError(t, err)
	f := newFixture(t, siesta.WithProtocols(table))

	b, err := f.gen.GetBuilder(context.Background(), f.kwargs(ironOxide(t), nil))
	require.NoError(t, err)
	assert.False(t, b.Contains("kpoints"), "no k-points section in the protocol")

	params := dict(t, b, "parameters")
	assert.Equal(t, "300 Ry", params["mesh-cutoff"])
	assert.Equal(t, "\n%endblock Constraints", params["%block Constraints"])
	assert.NotContains(t, params, "block Constraints")
	assert.Equal(t, " 1 0 0\n%endblock GridCellSampling", params["%block GridCellSampling"])

	basis := dict(t, b, "basis")
	assert.Equal(t, true, basis["pao-split-tail-norm"])
	assert.Equal(t, "\n  Fe1  non-perturbative \n%endblock paopolarizationscheme", basis["%block pao-polarization-scheme"])
	assert.Equal(t, "\n  Fe1  DZP \n%endblock paobasissizes", basis["%block pao-basis-sizes"])
	assert.Equal(t, "\nFe1 1\n n=4 0 2 \n%endblock pao-basis", basis["%block pao-basis"])
}

func TestGetBuilder_ReferenceWorkchain(t *testing.T) {
	f := newFixture(t)
	previous := domain.NewKpoints()
	require.NoError(t, previous.SetMesh([3]int{3, 3, 3}, [3]float64{0.5, 0.5, 0.5}))
	reference := domain.NewProcessNode(siesta.Process,
		map[string]domain.Node{"kpoints": previous},
		map[string]domain.Node{"output_parameters": domain.NewDict(map[string]any{"mesh": []any{36, 36, 40}})},
	)
	require.NoError(t, f.store.Save(context.Background(), reference))

	b, err := f.gen.GetBuilder(context.Background(), f.kwargs(aluminium(t), map[string]any{"reference_workchain": reference.UUID()}))
	require.NoError(t, err)

	params := dict(t, b, "parameters")
	assert.Equal(t, "[36 36 40]", params["mesh-sizes"])
	assert.NotContains(t, params, "mesh-cutoff")

	kpoints, _ := b.Get("kpoints")
	mesh, offset, _ := kpoints.(*domain.Kpoints).Mesh()
	assert.Equal(t, [3]int{3, 3, 3}, mesh)
	assert.Equal(t, [3]float64{0.5, 0.5, 0.5}, offset)
}

const denseTable = `
default: dense
protocols:
  dense:
    description: dense real-space mesh
    parameters:
      mesh-cutoff: 400 Ry
    basis:
      pao-energy-shift: 20 meV
    pseudo_family: test-family
`

func TestSpec_FollowsProtocolTable(t *testing.T) {
	table, err := siesta.LoadProtocols([]byte(denseTable))
	require.NoError(t, err)
	custom := newFixture(t, siesta.WithProtocols(table))
	embedded := newFixture(t)

	customSpec, err := custom.gen.Spec()
	require.NoError(t, err)
	embeddedSpec, err := embedded.gen.Spec()
	require.NoError(t, err)
	require.NotSame(t, customSpec, embeddedSpec)

	port, ok := customSpec.Port("protocol")
	require.True(t, ok)
	def, _ := port.Default()
	assert.Equal(t, "dense", def)
	assert.Nil(t, port.Validate("dense", "protocol"))
	assert.NotNil(t, port.Validate("moderate", "protocol"))

	port, ok = embeddedSpec.Port("protocol")
	require.True(t, ok)
	def, _ = port.Default()
	assert.Equal(t, "moderate", def)
	assert.NotNil(t, port.Validate("dense", "protocol"))

	b, err := custom.gen.GetBuilder(context.Background(), custom.kwargs(aluminium(t), nil))
	require.NoError(t, err)
	assert.Equal(t, "400 Ry", dict(t, b, "parameters")["mesh-cutoff"])

	again, err := newFixture(t, siesta.WithProtocols(table)).gen.Spec()
	require.NoError(t, err)
	assert.Same(t, customSpec, again, "same table, same cached spec")
}

func TestLoadProtocols_Embedded(t *testing.T) {
	impl, err := siesta.New()
	require.NoError(t, err)
	r := impl.Protocols()
	assert.Equal(t, "moderate", r.DefaultName())
	assert.Equal(t, []string{"fast", "moderate", "precise", "verification-PBE-v1"}, r.Names())

	prot, err := r.Get("verification-PBE-v1")
	require.NoError(t, err)
	params, err := siesta.Parameters(prot, aluminium(t), nil)
	require.NoError(t, err)
	assert.Contains(t, params, "%block GeometryConstraints")
}

func TestLoadProtocols_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		table string
		want  string
	}{
		{"no parameters", "default: a\nprotocols:\n  a:\n    description: a\n    basis: {}\n    pseudo_family: f\n", "mandatory key `parameters`"},
		{"no basis", "default: a\nprotocols:\n  a:\n    description: a\n    parameters: {}\n    pseudo_family: f\n", "mandatory key `basis`"},
		{"no family", "default: a\nprotocols:\n  a:\n    description: a\n    parameters: {}\n    basis: {}\n", "mandatory key `pseudo_family`"},
		{"bad cutoff", "default: a\nprotocols:\n  a:\n    description: a\n    parameters: {mesh-cutoff: '200'}\n    basis: {}\n    pseudo_family: f\n", "wrong format of `mesh-cutoff`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := siesta.LoadProtocols([]byte(tt.table))
			var invalid *protocol.InvalidRegistryError
			require.ErrorAs(t, err, &invalid)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestMaxMeshCutoff(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		symbols := []string{"H", "O", "Fe"}
		s := domain.NewStructure([3][3]float64{{5, 0, 0}, {0, 5, 0}, {0, 0, 5}})
		heuristics := map[string]map[string]any{}
		var want float64
		found := false

		hasGlobal := rapid.Bool().Draw(t, "global")
		params := map[string]any{}
		if hasGlobal {
			v := rapid.IntRange(1, 1000).Draw(t, "global_cutoff")
			params["mesh-cutoff"] = fmt.Sprintf("%d Ry", v)
			want, found = float64(v), true
		}
		for i, sym := range symbols {
			present := rapid.Bool().Draw(t, "present_"+sym)
			if present {
				if err := s.AppendAtom(sym, [3]float64{float64(i), 0, 0}, ""); err != nil {
					t.Fatal(err)
				}
			}
			if !rapid.Bool().Draw(t, "heuristic_"+sym) {
				continue
			}
			v := rapid.IntRange(1, 1000).Draw(t, "cutoff_"+sym)
			heuristics[sym] = map[string]any{"parameters": map[string]any{"mesh-cutoff": fmt.Sprintf("%d Ry", v)}}
			if present && (!found || float64(v) > want) {
				want, found = float64(v), true
			}
		}

		prot := protocol.Protocol{Name: "p", Parameters: params, AtomicHeuristics: heuristics}
		got, ok, err := siesta.MaxMeshCutoff(prot, s)
		if err != nil {
			t.Fatal(err)
		}
		if ok != found {
			t.Fatalf("found = %v, want %v", ok, found)
		}
		if found && (got.Value != want || got.Units != "Ry") {
			t.Fatalf("cutoff = %v, want %v Ry", got, want)
		}
	})
}
