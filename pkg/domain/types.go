package domain

import (
	"fmt"
	"slices"
)

// RelaxType selects the degrees of freedom optimized during a relaxation.
type RelaxType string

const (
	RelaxNone            RelaxType = "none"
	RelaxPositions       RelaxType = "positions"
	RelaxVolume          RelaxType = "volume"
	RelaxShape           RelaxType = "shape"
	RelaxCell            RelaxType = "cell"
	RelaxPositionsCell   RelaxType = "positions_cell"
	RelaxPositionsVolume RelaxType = "positions_volume"
	RelaxPositionsShape  RelaxType = "positions_shape"
)

// RelaxTypes returns every known relax type, in declaration order.
func RelaxTypes() []RelaxType {
	return []RelaxType{
		RelaxNone, RelaxPositions, RelaxVolume, RelaxShape,
		RelaxCell, RelaxPositionsCell, RelaxPositionsVolume, RelaxPositionsShape,
	}
}

// ParseRelaxType converts a string into a RelaxType.
func ParseRelaxType(s string) (RelaxType, error) {
	t := RelaxType(s)
	if !slices.Contains(RelaxTypes(), t) {
		return "", fmt.Errorf("unknown relax type %q", s)
	}
	return t, nil
}

// SpinType selects the spin polarization treatment.
type SpinType string

const (
	SpinNone         SpinType = "none"
	SpinCollinear    SpinType = "collinear"
	SpinNonCollinear SpinType = "non_collinear"
	SpinSpinOrbit    SpinType = "spin_orbit"
)

// SpinTypes returns every known spin type.
func SpinTypes() []SpinType {
	return []SpinType{SpinNone, SpinCollinear, SpinNonCollinear, SpinSpinOrbit}
}

// ParseSpinType converts a string into a SpinType.
func ParseSpinType(s string) (SpinType, error) {
	t := SpinType(s)
	if !slices.Contains(SpinTypes(), t) {
		return "", fmt.Errorf("unknown spin type %q", s)
	}
	return t, nil
}

// ElectronicType describes the electronic character of the system.
type ElectronicType string

const (
	ElectronicAutomatic ElectronicType = "automatic"
	ElectronicMetal     ElectronicType = "metal"
	ElectronicInsulator ElectronicType = "insulator"
	ElectronicUnknown   ElectronicType = "unknown"
)

// ElectronicTypes returns every known electronic type.
func ElectronicTypes() []ElectronicType {
	return []ElectronicType{ElectronicAutomatic, ElectronicMetal, ElectronicInsulator, ElectronicUnknown}
}

// ParseElectronicType converts a string into an ElectronicType.
func ParseElectronicType(s string) (ElectronicType, error) {
	t := ElectronicType(s)
	if !slices.Contains(ElectronicTypes(), t) {
		return "", fmt.Errorf("unknown electronic type %q", s)
	}
	return t, nil
}

// PostProcessQuantity names a quantity that a post-processing workflow can compute.
type PostProcessQuantity string

const (
	QuantityPotential     PostProcessQuantity = "potential"
	QuantityChargeDensity PostProcessQuantity = "charge_density"
)

// PostProcessQuantities returns every known post-processing quantity.
func PostProcessQuantities() []PostProcessQuantity {
	return []PostProcessQuantity{QuantityPotential, QuantityChargeDensity}
}
