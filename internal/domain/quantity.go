package domain

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a measurement unit understood by the store.
type Unit string

const (
	UnitGram        Unit = "g"
	UnitKilogram    Unit = "kg"
	UnitPound       Unit = "lb"
	UnitOunce       Unit = "oz"
	UnitCentimeter  Unit = "cm"
	UnitMeter       Unit = "m"
	UnitKilometer   Unit = "km"
	UnitInch        Unit = "in"
	UnitFoot        Unit = "ft"
	UnitMile        Unit = "mi"
	UnitKilocalorie Unit = "kcal"
	UnitKilojoule   Unit = "kJ"
	UnitCount       Unit = "count"
)

// Dimension is the physical quantity a unit measures.
type Dimension string

const (
	DimensionMass   Dimension = "mass"
	DimensionLength Dimension = "length"
	DimensionEnergy Dimension = "energy"
	DimensionScalar Dimension = "scalar"
)

type unitInfo struct {
	dimension Dimension
	// factor converts one unit into the dimension's base (kg, m, kcal, count).
	factor float64
}

var units = map[Unit]unitInfo{
	UnitGram:        {DimensionMass, 0.001},
	UnitKilogram:    {DimensionMass, 1},
	UnitPound:       {DimensionMass, 0.45359237},
	UnitOunce:       {DimensionMass, 0.028349523125},
	UnitCentimeter:  {DimensionLength, 0.01},
	UnitMeter:       {DimensionLength, 1},
	UnitKilometer:   {DimensionLength, 1000},
	UnitInch:        {DimensionLength, 0.0254},
	UnitFoot:        {DimensionLength, 0.3048},
	UnitMile:        {DimensionLength, 1609.344},
	UnitKilocalorie: {DimensionEnergy, 1},
	UnitKilojoule:   {DimensionEnergy, 1 / 4.184},
	UnitCount:       {DimensionScalar, 1},
}

// ParseUnit resolves a unit symbol case-insensitively.
func ParseUnit(value string) (Unit, error) {
	trimmed := strings.TrimSpace(value)
	if _, ok := units[Unit(trimmed)]; ok {
		return Unit(trimmed), nil
	}
	for u := range units {
		if strings.EqualFold(string(u), trimmed) {
			return u, nil
		}
	}
	return "", fmt.Errorf("unknown unit %q", value)
}

// Dimension returns the unit's dimension, or "" for unknown units.
func (u Unit) Dimension() Dimension {
	return units[u].dimension
}

// Quantity is a numeric value paired with its unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// NewQuantity is shorthand for Quantity{Value: v, Unit: u}.
func NewQuantity(v float64, u Unit) Quantity {
	return Quantity{Value: v, Unit: u}
}

// Validate rejects negative, NaN and infinite values. Every stored quantity
// is a non-negative measurement.
func (q Quantity) Validate() error {
	if math.IsNaN(q.Value) || math.IsInf(q.Value, 0) {
		return fmt.Errorf("%w: %v %s is not finite", ErrInvalidQuantity, q.Value, q.Unit)
	}
	if q.Value < 0 {
		return fmt.Errorf("%w: %v %s is negative", ErrInvalidQuantity, q.Value, q.Unit)
	}
	return nil
}

// In converts the quantity to target. Units must share a dimension.
func (q Quantity) In(target Unit) (float64, error) {
	from, ok := units[q.Unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrUnitMismatch, q.Unit)
	}
	to, ok := units[target]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrUnitMismatch, target)
	}
	if from.dimension != to.dimension {
		return 0, fmt.Errorf("%w: cannot convert %s to %s", ErrUnitMismatch, q.Unit, target)
	}
	if q.Unit == target {
		return q.Value, nil
	}
	return q.Value * from.factor / to.factor, nil
}

// Convert returns the quantity expressed in target.
func (q Quantity) Convert(target Unit) (Quantity, error) {
	v, err := q.In(target)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: target}, nil
}

func (q Quantity) String() string {
	return fmt.Sprintf("%g %s", q.Value, q.Unit)
}
