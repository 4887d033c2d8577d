package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Kpoints is a Monkhorst-Pack mesh with an optional reference cell.
type Kpoints struct {
	nodeBase
	cell    *[3][3]float64
	mesh    [3]int
	offset  [3]float64
	hasMesh bool
}

// NewKpoints creates an empty, unstored k-points node.
func NewKpoints() *Kpoints {
	return &Kpoints{nodeBase: newNodeBase()}
}

func (k *Kpoints) TypeName() string { return "kpoints" }

// SetCellFromStructure copies the cell of s, needed by SetMeshFromDensity.
func (k *Kpoints) SetCellFromStructure(s *Structure) error {
	if err := k.checkMutable(); err != nil {
		return err
	}
	cell := s.Cell()
	k.cell = &cell
	return nil
}

// SetMesh sets an explicit mesh and offset.
func (k *Kpoints) SetMesh(mesh [3]int, offset [3]float64) error {
	if err := k.checkMutable(); err != nil {
		return err
	}
	for i, n := range mesh {
		if n < 1 {
			return fmt.Errorf("mesh dimension %d must be positive, got %d", i, n)
		}
		if offset[i] < 0 || offset[i] >= 1 {
			return fmt.Errorf("offset %d must be in [0, 1), got %g", i, offset[i])
		}
	}
	k.mesh = mesh
	k.offset = offset
	k.hasMesh = true
	return nil
}

// SetMeshFromDensity sets the mesh so that the spacing between k-points along
// each reciprocal vector is at most distance (1/Angstrom).
func (k *Kpoints) SetMeshFromDensity(distance float64, offset [3]float64) error {
	if k.cell == nil {
		return fmt.Errorf("cannot set mesh from density without a cell")
	}
	if distance <= 0 {
		return fmt.Errorf("k-point distance must be positive, got %g", distance)
	}
	rec, err := reciprocal(*k.cell)
	if err != nil {
		return err
	}
	var mesh [3]int
	for i, b := range rec {
		n := floats.Norm(b[:], 2) / distance
		// round to 5 decimals first so that exact multiples do not jump one point up
		n = math.Round(n*1e5) / 1e5
		mesh[i] = max(int(math.Ceil(n)), 1)
	}
	return k.SetMesh(mesh, offset)
}

// Mesh returns the mesh and offset. ok is false if no mesh was set.
func (k *Kpoints) Mesh() (mesh [3]int, offset [3]float64, ok bool) {
	return k.mesh, k.offset, k.hasMesh
}

func (k *Kpoints) Clone() Node {
	c := &Kpoints{
		nodeBase: k.cloneBase(),
		mesh:     k.mesh,
		offset:   k.offset,
		hasMesh:  k.hasMesh,
	}
	if k.cell != nil {
		cell := *k.cell
		c.cell = &cell
	}
	return c
}
