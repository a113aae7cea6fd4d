package domain

import (
	"math"
	"strconv"
)

// CalculateBMI returns weight / height² for weight in kilograms and height in
// meters. BMI is undefined unless height is positive and finite and weight
// is non-negative and finite.
func CalculateBMI(weightKg, heightM float64) Optional[float64] {
	if !(heightM > 0) || math.IsInf(heightM, 0) {
		return None[float64]()
	}
	if !(weightKg >= 0) || math.IsInf(weightKg, 0) {
		return None[float64]()
	}
	return Some(weightKg / (heightM * heightM))
}

// BMIFromSamples converts both samples to canonical units before calculating.
func BMIFromSamples(weight, height Sample) (Optional[float64], error) {
	kg, err := weight.Quantity.In(UnitKilogram)
	if err != nil {
		return None[float64](), err
	}
	m, err := height.Quantity.In(UnitMeter)
	if err != nil {
		return None[float64](), err
	}
	return CalculateBMI(kg, m), nil
}

// FormatBMI renders a BMI with two decimals, or the unknown label.
func FormatBMI(bmi Optional[float64]) string {
	v, ok := bmi.Get()
	if !ok {
		return UnknownLabel
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
