package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantityConversions(t *testing.T) {
	cases := []struct {
		in     Quantity
		target Unit
		want   float64
	}{
		{NewQuantity(1, UnitPound), UnitKilogram, 0.45359237},
		{NewQuantity(175, UnitCentimeter), UnitMeter, 1.75},
		{NewQuantity(1, UnitMile), UnitKilometer, 1.609344},
		{NewQuantity(4.184, UnitKilojoule), UnitKilocalorie, 1},
		{NewQuantity(12, UnitInch), UnitFoot, 1},
		{NewQuantity(22.5, UnitCount), UnitCount, 22.5},
	}
	for _, tc := range cases {
		got, err := tc.in.In(tc.target)
		require.NoError(t, err)
		require.InDelta(t, tc.want, got, 1e-9, "%s -> %s", tc.in, tc.target)
	}
}

func TestQuantityMismatch(t *testing.T) {
	_, err := NewQuantity(1, UnitKilogram).In(UnitMeter)
	require.ErrorIs(t, err, ErrUnitMismatch)

	_, err = NewQuantity(1, Unit("stone")).In(UnitKilogram)
	require.ErrorIs(t, err, ErrUnitMismatch)
}

func TestQuantityValidate(t *testing.T) {
	require.NoError(t, NewQuantity(0, UnitKilogram).Validate())
	require.NoError(t, NewQuantity(70, UnitKilogram).Validate())

	for _, v := range []float64{-70, math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := NewQuantity(v, UnitKilogram).Validate()
		require.ErrorIs(t, err, ErrInvalidQuantity, "%v", v)
	}
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("KG")
	require.NoError(t, err)
	require.Equal(t, UnitKilogram, u)

	u, err = ParseUnit("kj")
	require.NoError(t, err)
	require.Equal(t, UnitKilojoule, u)

	_, err = ParseUnit("furlong")
	require.Error(t, err)
}
