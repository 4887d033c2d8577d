package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Kind groups the sites sharing the same species and properties.
// Name usually equals Symbol, but may differ (e.g. "Fe1", "Fe2" for two magnetic sublattices).
type Kind struct {
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Symbol string  `json:"symbol" yaml:"symbol" mapstructure:"symbol"`
	Mass   float64 `json:"mass,omitempty" yaml:"mass,omitempty" mapstructure:"mass"`
}

// Site is an atomic position (Cartesian, Angstrom) of a given kind.
type Site struct {
	Kind     string     `json:"kind" yaml:"kind" mapstructure:"kind"`
	Position [3]float64 `json:"position" yaml:"position" mapstructure:"position"`
}

// Structure is a periodic crystal structure.
type Structure struct {
	nodeBase
	cell  [3][3]float64
	pbc   [3]bool
	kinds []Kind
	sites []Site
}

// NewStructure creates an empty, fully periodic structure with the given cell (rows are lattice vectors).
func NewStructure(cell [3][3]float64) *Structure {
	return &Structure{
		nodeBase: newNodeBase(),
		cell:     cell,
		pbc:      [3]bool{true, true, true},
	}
}

func (s *Structure) TypeName() string { return "structure" }

// AppendAtom adds a site. If name is empty the kind is named after the symbol.
// A kind with the same name but a different symbol is rejected.
func (s *Structure) AppendAtom(symbol string, position [3]float64, name string) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	if symbol == "" {
		return fmt.Errorf("atom symbol is required")
	}
	if name == "" {
		name = symbol
	}
	if k, ok := s.kind(name); ok {
		if k.Symbol != symbol {
			return fmt.Errorf("kind %q already defined with symbol %q", name, k.Symbol)
		}
	} else {
		s.kinds = append(s.kinds, Kind{Name: name, Symbol: symbol})
	}
	s.sites = append(s.sites, Site{Kind: name, Position: position})
	return nil
}

// SetPBC sets the periodic boundary conditions.
func (s *Structure) SetPBC(pbc [3]bool) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	s.pbc = pbc
	return nil
}

func (s *Structure) kind(name string) (Kind, bool) {
	for _, k := range s.kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// Cell returns the lattice vectors as rows.
func (s *Structure) Cell() [3][3]float64 { return s.cell }

// PBC returns the periodic boundary conditions.
func (s *Structure) PBC() [3]bool { return s.pbc }

// Kinds returns a copy of the kinds, in insertion order.
func (s *Structure) Kinds() []Kind {
	return append([]Kind(nil), s.kinds...)
}

// Sites returns a copy of the sites, in insertion order.
func (s *Structure) Sites() []Site {
	return append([]Site(nil), s.sites...)
}

// KindNames returns the kind names, in insertion order.
func (s *Structure) KindNames() []string {
	names := make([]string, len(s.kinds))
	for i, k := range s.kinds {
		names[i] = k.Name
	}
	return names
}

// Symbols returns the sorted set of chemical symbols present in the structure.
func (s *Structure) Symbols() []string {
	seen := make(map[string]struct{}, len(s.kinds))
	var symbols []string
	for _, k := range s.kinds {
		if _, ok := seen[k.Symbol]; ok {
			continue
		}
		seen[k.Symbol] = struct{}{}
		symbols = append(symbols, k.Symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// ReciprocalCell returns 2*pi*inv(cell)^T, rows being the reciprocal vectors.
func (s *Structure) ReciprocalCell() ([3][3]float64, error) {
	return reciprocal(s.cell)
}

func (s *Structure) Clone() Node {
	return &Structure{
		nodeBase: s.cloneBase(),
		cell:     s.cell,
		pbc:      s.pbc,
		kinds:    s.Kinds(),
		sites:    s.Sites(),
	}
}

func reciprocal(cell [3][3]float64) ([3][3]float64, error) {
	var out [3][3]float64
	a := mat.NewDense(3, 3, []float64{
		cell[0][0], cell[0][1], cell[0][2],
		cell[1][0], cell[1][1], cell[1][2],
		cell[2][0], cell[2][1], cell[2][2],
	})
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return out, fmt.Errorf("cell is singular: %w", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// transpose: row i of the result is column i of the inverse
			out[i][j] = 2 * math.Pi * inv.At(j, i)
		}
	}
	return out, nil
}
