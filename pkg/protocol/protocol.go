package protocol

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Thresholds are the default convergence targets of a protocol.
type Thresholds struct {
	// Forces in eV/Angstrom.
	Forces float64 `mapstructure:"forces" json:"forces,omitempty" yaml:"forces,omitempty"`
	// Stress in eV/Angstrom^3.
	Stress float64 `mapstructure:"stress" json:"stress,omitempty" yaml:"stress,omitempty"`
}

// Protocol is a decoded protocol definition. Engine-specific keys that have no
// dedicated field are kept in Extra.
type Protocol struct {
	Name             string                    `mapstructure:"-" json:"name" yaml:"name"`
	Description      string                    `mapstructure:"description" json:"description" yaml:"description"`
	Parameters       map[string]any            `mapstructure:"parameters" json:"parameters,omitempty" yaml:"parameters,omitempty"`
	AtomicHeuristics map[string]map[string]any `mapstructure:"atomic_heuristics" json:"atomic_heuristics,omitempty" yaml:"atomic_heuristics,omitempty"`
	Basis            map[string]any            `mapstructure:"basis" json:"basis,omitempty" yaml:"basis,omitempty"`
	Kpoints          map[string]any            `mapstructure:"kpoints" json:"kpoints,omitempty" yaml:"kpoints,omitempty"`
	Thresholds       Thresholds                `mapstructure:"default_thresholds" json:"default_thresholds" yaml:"default_thresholds"`
	PseudoFamily     string                    `mapstructure:"pseudo_family" json:"pseudo_family,omitempty" yaml:"pseudo_family,omitempty"`
	Extra            map[string]any            `mapstructure:",remain" json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Heuristic returns the per-species override block for symbol under section
// (e.g. "parameters" or "basis"). ok is false when none is defined.
func (p Protocol) Heuristic(symbol, section string) (map[string]any, bool) {
	species, ok := p.AtomicHeuristics[symbol]
	if !ok {
		return nil, false
	}
	block, ok := species[section].(map[string]any)
	return block, ok
}

// decode converts a raw definition into a Protocol.
func decode(name string, raw map[string]any) (Protocol, error) {
	p := Protocol{Name: name}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &p,
		TagName: "mapstructure",
	})
	if err != nil {
		return Protocol{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Protocol{}, fmt.Errorf("protocol `%s`: %w", name, err)
	}
	return p, nil
}
