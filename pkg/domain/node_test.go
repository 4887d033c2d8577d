package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silicon(t *testing.T) *Structure {
	t.Helper()
	a := 5.43
	s := NewStructure([3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}})
	require.NoError(t, s.AppendAtom("Si", [3]float64{0, 0, 0}, ""))
	require.NoError(t, s.AppendAtom("Si", [3]float64{a / 4, a / 4, a / 4}, ""))
	return s
}

func TestDict_StoredIsImmutable(t *testing.T) {
	d := NewDict(map[string]any{"a": 1})
	require.NoError(t, d.Set("b", 2))

	d.MarkStored()
	err := d.Set("c", 3)
	assert.ErrorIs(t, err, ErrStoredImmutable)

	clone := d.Clone().(*Dict)
	assert.False(t, clone.IsStored())
	assert.NotEqual(t, d.UUID(), clone.UUID())
	require.NoError(t, clone.Set("c", 3))
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, d.AsMap())
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, clone.AsMap())
}

func TestDict_CopiesInput(t *testing.T) {
	src := map[string]any{"nested": map[string]any{"x": 1}}
	d := NewDict(src)
	src["nested"].(map[string]any)["x"] = 2

	v, ok := d.Get("nested")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": 1}, v)
}

func TestStructure_Kinds(t *testing.T) {
	s := NewStructure([3][3]float64{{3, 0, 0}, {0, 3, 0}, {0, 0, 3}})
	require.NoError(t, s.AppendAtom("Fe", [3]float64{0, 0, 0}, "Fe1"))
	require.NoError(t, s.AppendAtom("Fe", [3]float64{1.5, 1.5, 1.5}, "Fe2"))
	require.NoError(t, s.AppendAtom("O", [3]float64{1.5, 0, 0}, ""))

	assert.Equal(t, []string{"Fe1", "Fe2", "O"}, s.KindNames())
	assert.Equal(t, []string{"Fe", "O"}, s.Symbols())
	assert.Len(t, s.Sites(), 3)

	err := s.AppendAtom("Co", [3]float64{}, "Fe1")
	assert.Error(t, err)
}

func TestStructure_ReciprocalCell(t *testing.T) {
	s := silicon(t)
	rec, err := s.ReciprocalCell()
	require.NoError(t, err)
	want := 2 * math.Pi / 5.43
	assert.InDelta(t, want, rec[0][0], 1e-9)
	assert.InDelta(t, 0, rec[0][1], 1e-9)
	assert.InDelta(t, want, rec[2][2], 1e-9)

	flat := NewStructure([3][3]float64{{1, 0, 0}, {2, 0, 0}, {0, 0, 1}})
	_, err = flat.ReciprocalCell()
	assert.Error(t, err)
}

func TestKpoints_MeshFromDensity(t *testing.T) {
	k := NewKpoints()
	err := k.SetMeshFromDensity(0.3, [3]float64{})
	assert.Error(t, err, "cell is required")

	require.NoError(t, k.SetCellFromStructure(silicon(t)))
	require.NoError(t, k.SetMeshFromDensity(0.3, [3]float64{}))

	mesh, offset, ok := k.Mesh()
	require.True(t, ok)
	// |b| = 2*pi/5.43 = 1.157 -> 1.157/0.3 = 3.86 -> 4
	assert.Equal(t, [3]int{4, 4, 4}, mesh)
	assert.Equal(t, [3]float64{}, offset)

	require.NoError(t, k.SetMeshFromDensity(10, [3]float64{0.5, 0.5, 0.5}))
	mesh, _, _ = k.Mesh()
	assert.Equal(t, [3]int{1, 1, 1}, mesh)
}

func TestKpoints_SetMeshValidation(t *testing.T) {
	k := NewKpoints()
	assert.Error(t, k.SetMesh([3]int{0, 1, 1}, [3]float64{}))
	assert.Error(t, k.SetMesh([3]int{1, 1, 1}, [3]float64{1, 0, 0}))
	assert.NoError(t, k.SetMesh([3]int{2, 2, 2}, [3]float64{0.5, 0, 0}))
}

func TestCode_Capability(t *testing.T) {
	_, err := NewCode("", "siesta.siesta", "", "")
	assert.Error(t, err)

	c, err := NewCode("siesta-4.1", "siesta.siesta", "localhost", "/usr/bin/siesta")
	require.NoError(t, err)

	var capable Capable = c
	assert.Equal(t, "siesta.siesta", capable.Capability())
	assert.Equal(t, "siesta-4.1@localhost", c.FullLabel())
}

func TestCodec_RoundTrip(t *testing.T) {
	s := silicon(t)
	s.MarkStored()
	k := NewKpoints()
	require.NoError(t, k.SetMesh([3]int{3, 3, 3}, [3]float64{}))
	run := NewProcessNode("relax.siesta",
		map[string]Node{"structure": s, "kpoints": k},
		map[string]Node{"output_parameters": NewDict(map[string]any{"mesh": []any{10, 10, 10}})},
	)

	b, err := MarshalNode(run)
	require.NoError(t, err)
	decoded, err := UnmarshalNode(b)
	require.NoError(t, err)

	got, ok := decoded.(*ProcessNode)
	require.True(t, ok)
	assert.Equal(t, run.UUID(), got.UUID())
	assert.Equal(t, "relax.siesta", got.ProcessType())

	in, ok := got.Input("structure")
	require.True(t, ok)
	gs := in.(*Structure)
	assert.True(t, gs.IsStored())
	assert.Equal(t, s.UUID(), gs.UUID())
	assert.Equal(t, s.Sites(), gs.Sites())

	kin, _ := got.Input("kpoints")
	mesh, _, ok := kin.(*Kpoints).Mesh()
	assert.True(t, ok)
	assert.Equal(t, [3]int{3, 3, 3}, mesh)

	_, err = UnmarshalNode([]byte(`{"type":"bogus","uuid":"x","data":{}}`))
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestParseEnums(t *testing.T) {
	rt, err := ParseRelaxType("positions_cell")
	require.NoError(t, err)
	assert.Equal(t, RelaxPositionsCell, rt)
	_, err = ParseRelaxType("everything")
	assert.Error(t, err)

	st, err := ParseSpinType("collinear")
	require.NoError(t, err)
	assert.Equal(t, SpinCollinear, st)

	_, err = ParseElectronicType("semimetal")
	assert.Error(t, err)
}

func TestMarshalStoredNode(t *testing.T) {
	d := NewDict(map[string]any{"ecut": 500})

	b, err := MarshalStoredNode(d)
	require.NoError(t, err)
	assert.False(t, d.IsStored())

	decoded, err := UnmarshalNode(b)
	require.NoError(t, err)
	assert.True(t, decoded.IsStored())
	assert.Equal(t, d.UUID(), decoded.UUID())
}

func TestIsNil(t *testing.T) {
	var code *Code
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(code))
	assert.False(t, IsNil(NewStr("x")))
}
