package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means this host has no health store at all.
	ErrStoreUnavailable = errors.New("health data is not available on this host")
	// ErrAuthorizationDenied is returned when access to a record type was not granted.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrQueryFailed wraps a failed store read.
	ErrQueryFailed = errors.New("health store query failed")
	// ErrSaveFailed wraps a failed store write.
	ErrSaveFailed = errors.New("health store save failed")
	// ErrNothingToSave is the soft outcome of saving with no BMI computed.
	ErrNothingToSave = errors.New("there is no BMI value to save")
	// ErrInvalidQuantity is returned for negative or non-finite values.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrUnitMismatch is returned when converting across dimensions.
	ErrUnitMismatch = errors.New("unit mismatch")
	// ErrInvalidWorkout is returned for workouts that fail validation.
	ErrInvalidWorkout = errors.New("invalid workout")
	// ErrUnknownRecordType is returned for identifiers outside the catalog.
	ErrUnknownRecordType = errors.New("unknown record type")
)

// LinkedSampleError reports a constituent sample that could not be attached
// to an already persisted workout.
type LinkedSampleError struct {
	WorkoutID string
	Type      RecordType
	Err       error
}

func (e *LinkedSampleError) Error() string {
	return fmt.Sprintf("save %s sample for workout %s: %v", e.Type, e.WorkoutID, e.Err)
}

func (e *LinkedSampleError) Unwrap() error {
	return e.Err
}
