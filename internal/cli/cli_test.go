package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/commonwf/internal/config"
	"github.com/aretw0/commonwf/pkg/adapters/memory"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/generator"
	"github.com/aretw0/commonwf/pkg/workflows/relax/siesta"
)

const siliconYAML = `
label: silicon
cell: [[0, 2.715, 2.715], [2.715, 0, 2.715], [2.715, 2.715, 0]]
sites:
  - {symbol: Si, position: [0, 0, 0]}
  - {symbol: Si, position: [1.3575, 1.3575, 1.3575]}
`

func newGenerator(t *testing.T, store *memory.Store) *generator.InputGenerator {
	t.Helper()
	impl, err := siesta.New()
	require.NoError(t, err)
	gen, err := generator.New(impl, siesta.Process, generator.WithLoader(store))
	require.NoError(t, err)
	return gen
}

func newStore(t *testing.T) (*memory.Store, *domain.Code) {
	t.Helper()
	code, err := domain.NewCode("siesta", siesta.CodePlugin, "localhost", "/usr/bin/siesta")
	require.NoError(t, err)
	other, err := domain.NewCode("vasp", "vasp.vasp", "localhost", "/usr/bin/vasp_std")
	require.NoError(t, err)
	store, err := memory.NewFromNodes(other, code, domain.NewGroup("PseudoDojo/0.4/PBE/FR/standard/psml"))
	require.NoError(t, err)
	return store, code
}

func TestParseStructure(t *testing.T) {
	s, err := ParseStructure([]byte(siliconYAML))
	require.NoError(t, err)
	assert.Equal(t, "silicon", s.Label())
	assert.Equal(t, []string{"Si"}, s.Symbols())
	assert.Len(t, s.Sites(), 2)
	assert.Equal(t, [3]bool{true, true, true}, s.PBC())

	_, err = ParseStructure([]byte("cell: [[1, 0, 0], [0, 1, 0], [0, 0, 1]]\n"))
	assert.ErrorContains(t, err, "no sites")

	_, err = ParseStructure([]byte("cell: [[1, 0, 0], [2, 0, 0], [0, 0, 1]]\nsites: [{symbol: H}]\n"))
	assert.ErrorContains(t, err, "invalid cell")
}

func TestLoadNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `codes:
  - {label: siesta, plugin: siesta.siesta, computer: localhost, executable: /usr/bin/siesta}
groups:
  - {label: PseudoDojo/0.4/PBE/FR/standard/psml, members: [Si.psml]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	nodes, err := LoadNodes(path)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, siesta.CodePlugin, nodes[0].(*domain.Code).Capability())
	assert.Equal(t, []string{"Si.psml"}, nodes[1].(*domain.Group).Members())

	require.NoError(t, os.WriteFile(path, []byte("codes: [{label: broken}]\n"), 0644))
	_, err = LoadNodes(path)
	assert.ErrorContains(t, err, "plugin is required")
}

func TestRelaxInputs(t *testing.T) {
	store, code := newStore(t)
	gen := newGenerator(t, store)
	s, err := ParseStructure([]byte(siliconYAML))
	require.NoError(t, err)

	inputs, err := RelaxInputs(context.Background(), gen, store, RelaxOptions{
		Structure:                s,
		Protocol:                 "fast",
		RelaxType:                "positions",
		ElectronicType:           "metal",
		SpinType:                 "none",
		NumberMPIProcsPerMachine: []int{4},
		EngineOptions:            map[string]any{"relax": map[string]any{"queue_name": "debug"}},
	})
	require.NoError(t, err)

	relax := inputs["engines"].(map[string]any)["relax"].(map[string]any)
	assert.Equal(t, code.UUID(), relax["code"], "the code running siesta.siesta is picked from the store")
	options := relax["options"].(map[string]any)
	assert.Equal(t, map[string]any{"num_machines": 1, "num_mpiprocs_per_machine": 4}, options["resources"])
	assert.Equal(t, DefaultWallclockSeconds, options["max_wallclock_seconds"])
	assert.Equal(t, true, options["withmpi"])
	assert.Equal(t, "debug", options["queue_name"])
	assert.NotContains(t, inputs, "threshold_forces")

	b, err := gen.GetBuilder(context.Background(), inputs)
	require.NoError(t, err)
	assert.True(t, b.Contains("kpoints"))
}

func TestRelaxInputs_Usage(t *testing.T) {
	store, _ := newStore(t)
	gen := newGenerator(t, store)
	base := RelaxOptions{Protocol: "fast"}

	tests := []struct {
		name    string
		mutate  func(o *RelaxOptions)
		message string
	}{
		{"engine count", func(o *RelaxOptions) { o.WallclockSeconds = []int{10, 20} }, "has 1 engine steps, so requires 1 values"},
		{"protocol", func(o *RelaxOptions) { o.Protocol = "sloppy" }, "`sloppy` is not implemented by"},
		{"engine options type", func(o *RelaxOptions) { o.EngineOptions = []any{1} }, "You must pass a dictionary"},
		{"unknown engine", func(o *RelaxOptions) { o.EngineOptions = map[string]any{"scf": map[string]any{}} }, "unknown engine types: [scf]"},
		{"code type", func(o *RelaxOptions) { o.Codes = []string{"PseudoDojo/0.4/PBE/FR/standard/psml"} }, "is not a code but a group"},
		{"optional feature", func(o *RelaxOptions) { o.OptionalFeatures = []string{"fixed_magnetization"} }, "not supported by `common_workflows.relax.siesta`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			_, err := RelaxInputs(context.Background(), gen, store, opts)
			var usage *UsageError
			require.ErrorAs(t, err, &usage)
			assert.Contains(t, usage.Error(), tt.message)
		})
	}

	_, err := RelaxInputs(context.Background(), gen, memory.NewStore(), base)
	assert.ErrorContains(t, err, "could not find a configured code for the plugin `siesta.siesta`")
}

func TestParseOverride(t *testing.T) {
	o, err := ParseOverride(`generic.update_dict:{"port": "parameters", "dictionary": {"spin": "polarized"}}`)
	require.NoError(t, err)
	assert.Equal(t, "generic.update_dict", o.Name)
	assert.Equal(t, "parameters", o.Args["port"])
	assert.Equal(t, map[string]any{"spin": "polarized"}, o.Args["dictionary"])

	o, err = ParseOverride("generic.remove_node")
	require.NoError(t, err)
	assert.Empty(t, o.Args)

	_, err = ParseOverride(`:{"port": "x"}`)
	assert.ErrorContains(t, err, "missing override name")

	_, err = ParseOverrides([]string{"generic.remove_node:[1, 2]"})
	assert.ErrorContains(t, err, "must be a mapping")
}

func TestShowEngines(t *testing.T) {
	store, _ := newStore(t)
	spec, err := newGenerator(t, store).Spec()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ShowEngines(&buf, spec, termenv.Ascii))
	assert.Equal(t, "relax\nRequired code plugin: siesta.siesta\nEngine description:   Inputs for the quantum engine performing the geometry optimization.\n", buf.String())
}

func TestWriteValue(t *testing.T) {
	v := map[string]any{"protocol": "fast", "engines": map[string]any{"relax": 1}}

	var buf bytes.Buffer
	require.NoError(t, WriteValue(&buf, v, config.OutputJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "fast", decoded["protocol"])

	buf.Reset()
	require.NoError(t, WriteValue(&buf, v, config.OutputYAML))
	assert.Equal(t, "engines:\n  relax: 1\nprotocol: fast\n", buf.String())

	assert.Error(t, WriteValue(&buf, v, "toml"))
}

func TestLoadStructure_Builtin(t *testing.T) {
	assert.Equal(t, []string{"Al", "Fe", "Si"}, BuiltinStructures())

	s, err := LoadStructure("Al")
	require.NoError(t, err)
	assert.Equal(t, "Al", s.Label())

	path := filepath.Join(t.TempDir(), "silicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(siliconYAML), 0644))
	s, err = LoadStructure(path)
	require.NoError(t, err)
	assert.Equal(t, "silicon", s.Label())

	_, err = LoadStructure("Unobtainium")
	assert.ErrorContains(t, err, "neither a file nor one of [Al Fe Si]")
}
