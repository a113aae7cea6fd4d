package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultAuthorizationRequest(t *testing.T) {
	req := DefaultAuthorizationRequest()
	require.ElementsMatch(t, []RecordType{
		RecordDateOfBirth, RecordBloodType, RecordBiologicalSex,
		RecordBodyMass, RecordHeight, RecordWorkout,
	}, req.Read())
	require.ElementsMatch(t, []RecordType{
		RecordBodyMassIndex, RecordActiveEnergyBurned,
		RecordDistanceWalkingRunning, RecordWorkout,
	}, req.Write())
}

func TestAuthorizationRequestIsImmutable(t *testing.T) {
	req := NewAuthorizationRequest([]RecordType{RecordHeight, RecordHeight, "steps"}, nil)
	require.Equal(t, []RecordType{RecordHeight}, req.Read())

	read := req.Read()
	read[0] = RecordBodyMass
	require.Equal(t, []RecordType{RecordHeight}, req.Read())
	require.True(t, NewAuthorizationRequest(nil, nil).Empty())
}

func TestRecordCatalog(t *testing.T) {
	for _, rt := range RecordTypes() {
		require.True(t, rt.Valid(), rt)
	}
	unit, ok := RecordBodyMassIndex.CanonicalUnit()
	require.True(t, ok)
	require.Equal(t, UnitCount, unit)

	_, ok = RecordBloodType.CanonicalUnit()
	require.False(t, ok)

	rt, err := ParseRecordType(" Body-Mass ")
	require.NoError(t, err)
	require.Equal(t, RecordBodyMass, rt)

	_, err = ParseRecordType("steps")
	require.ErrorIs(t, err, ErrUnknownRecordType)
}

func TestWorkoutInputValidate(t *testing.T) {
	start := time.Date(2026, time.October, 18, 7, 0, 0, 0, time.UTC)
	valid := WorkoutInput{
		Activity: ActivityRunning,
		StartAt:  start,
		EndAt:    start.Add(30 * time.Minute),
		Distance: NewQuantity(5, UnitKilometer),
		Energy:   NewQuantity(350, UnitKilocalorie),
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Distance = NewQuantity(5, UnitKilocalorie)
	require.ErrorIs(t, bad.Validate(), ErrInvalidWorkout)

	bad = valid
	bad.Energy = NewQuantity(350, UnitKilogram)
	require.ErrorIs(t, bad.Validate(), ErrInvalidWorkout)

	bad = valid
	bad.Activity = "yoga"
	require.ErrorIs(t, bad.Validate(), ErrInvalidWorkout)

	bad = valid
	bad.EndAt = time.Time{}
	require.ErrorIs(t, bad.Validate(), ErrInvalidWorkout)

	bad = valid
	bad.Distance = NewQuantity(math.NaN(), UnitKilometer)
	err := bad.Validate()
	require.ErrorIs(t, err, ErrInvalidWorkout)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	bad = valid
	bad.Energy = NewQuantity(-350, UnitKilocalorie)
	require.ErrorIs(t, bad.Validate(), ErrInvalidQuantity)

	bad = valid
	bad.Energy = NewQuantity(math.Inf(1), UnitKilocalorie)
	require.ErrorIs(t, bad.Validate(), ErrInvalidQuantity)
}

func TestWorkoutDurationIsAbsolute(t *testing.T) {
	start := time.Date(2026, time.October, 18, 7, 0, 0, 0, time.UTC)
	w := Workout{StartAt: start.Add(time.Hour), EndAt: start}
	require.Equal(t, time.Hour, w.Duration())
}

func TestOptional(t *testing.T) {
	some := Some(3)
	v, ok := some.Get()
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.Equal(t, 3, *some.Ptr())

	none := None[int]()
	require.False(t, none.Present())
	require.Nil(t, none.Ptr())
	require.Equal(t, 7, none.OrElse(7))

	require.Equal(t, Some("3"), MapOptional(some, func(i int) string { return "3" }))
	require.False(t, MapOptional(none, func(i int) string { return "x" }).Present())
	require.Equal(t, none, FromPtr[int](nil))
}
