package domain

import (
	"context"
	"time"
)

// HealthStore is the capability-gated record store the gateway wraps.
//
// Reads of a type the owner has not granted read access to behave as if no
// data exists. SaveSample, SaveWorkout and AddSamplesToWorkout require a
// write grant and return ErrAuthorizationDenied otherwise. Manual entry
// (UpdateCharacteristics, RecordManualSample) stands for the owner typing
// data into the store directly and is not grant gated.
type HealthStore interface {
	// Available is a local capability check that performs no I/O.
	Available() bool

	RequestAuthorization(ctx context.Context, owner Owner, req AuthorizationRequest) error
	SetAuthorizationStatus(ctx context.Context, owner Owner, rt RecordType, mode AccessMode, status AuthorizationStatus) error

	DateOfBirth(ctx context.Context, owner Owner) (Optional[time.Time], error)
	BiologicalSex(ctx context.Context, owner Owner) (Optional[BiologicalSex], error)
	BloodType(ctx context.Context, owner Owner) (Optional[BloodType], error)
	UpdateCharacteristics(ctx context.Context, owner Owner, c Characteristics) error

	QuerySamples(ctx context.Context, owner Owner, q SampleQuery) ([]Sample, error)
	QueryWorkouts(ctx context.Context, owner Owner, q WorkoutQuery) ([]Workout, *Cursor, error)

	SaveSample(ctx context.Context, owner Owner, s Sample) error
	RecordManualSample(ctx context.Context, owner Owner, s Sample) error
	SaveWorkout(ctx context.Context, owner Owner, w Workout) error
	AddSamplesToWorkout(ctx context.Context, owner Owner, workoutID string, samples []Sample) error
}
