package builder

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/commonwf/pkg/domain"
)

func TestBuilder_NestedKeys(t *testing.T) {
	b := New("relax.siesta")
	require.NoError(t, b.Set("structure", "S"))
	require.NoError(t, b.Set("vasp.code", "C"))
	require.NoError(t, b.Set("vasp.parameters", map[string]any{"incar": map[string]any{"encut": 500}}))

	assert.Equal(t, "relax.siesta", b.Process())
	assert.Equal(t, []string{"structure", "vasp"}, b.Keys())
	assert.True(t, b.Contains("vasp.code"))
	assert.True(t, b.Contains("vasp.parameters.incar.encut"))
	assert.False(t, b.Contains("vasp.missing"))
	assert.False(t, b.Contains("structure.child"))

	v, ok := b.Get("vasp.parameters")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"incar": map[string]any{"encut": 500}}, v)

	assert.True(t, b.Delete("vasp.code"))
	assert.False(t, b.Delete("vasp.code"))
	assert.False(t, b.Contains("vasp.code"))
	assert.True(t, b.Contains("vasp"))
}

func TestBuilder_SetPathConflict(t *testing.T) {
	b := New("p")
	require.NoError(t, b.Set("a", 1))

	err := b.Set("a.b.c", 2)
	assert.ErrorIs(t, err, ErrPathConflict)
	assert.ErrorContains(t, err, "`a` holds a int")
	v, ok := b.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v, "a conflicting set leaves the builder unchanged")

	require.NoError(t, b.Set("a", map[string]any{"b": 2}), "the last segment may be replaced")
	v, _ = b.Get("a")
	assert.Equal(t, map[string]any{"b": 2}, v)
	require.NoError(t, b.Set("a.b", 3))
	v, _ = b.Get("a.b")
	assert.Equal(t, 3, v)
}

func TestBuilder_SetEntries(t *testing.T) {
	b := New("p")
	err := b.SetEntries(
		Entry{Key: "code", Value: "C"},
		Entry{Key: "code.label", Value: "L"},
		Entry{Key: "never", Value: true},
	)
	assert.ErrorIs(t, err, ErrPathConflict)
	assert.Equal(t, []string{"code"}, b.Keys())
}

func TestBuilder_Marshal(t *testing.T) {
	b := New("relax.siesta")
	require.NoError(t, b.Set("parameters", domain.NewDict(map[string]any{"mesh-cutoff": "200 Ry"})))
	require.NoError(t, b.Set("pseudo_family", domain.NewStr("nc-sr-04")))
	require.NoError(t, b.Set("engines.relax.options", map[string]any{"max_wallclock_seconds": 3600}))

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"parameters": {"mesh-cutoff": "200 Ry"},
		"pseudo_family": "nc-sr-04",
		"engines": {"relax": {"options": {"max_wallclock_seconds": 3600}}}
	}`, string(raw))
	// order is preserved
	assert.Less(t, strings.Index(string(raw), "parameters"), strings.Index(string(raw), "engines"))

	out, err := yaml.Marshal(b)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "nc-sr-04", back["pseudo_family"])
}

func TestDescribe_DropsIdentity(t *testing.T) {
	b1 := New("p")
	require.NoError(t, b1.Set("parameters", domain.NewDict(map[string]any{"x": 1})))
	b2 := New("p")
	require.NoError(t, b2.Set("parameters", domain.NewDict(map[string]any{"x": 1})))

	assert.Equal(t, b1.Describe(), b2.Describe())
}
