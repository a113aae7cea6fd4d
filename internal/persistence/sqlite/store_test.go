package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthprofile/internal/domain"
)

var owner = domain.Owner{TenantID: "local", UserID: "me"}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAvailable(t *testing.T) {
	var missing *Store
	require.False(t, missing.Available())
	require.True(t, openStore(t).Available())
}

func TestCharacteristicsRequireReadGrant(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	birth := time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateCharacteristics(ctx, owner, domain.Characteristics{
		DateOfBirth:   domain.Some(birth),
		BiologicalSex: domain.Some(domain.SexMale),
		BloodType:     domain.Some(domain.BloodABNegative),
	}))

	dob, err := store.DateOfBirth(ctx, owner)
	require.NoError(t, err)
	require.False(t, dob.Present())

	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))

	dob, err = store.DateOfBirth(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, domain.Some(birth), dob)

	sex, err := store.BiologicalSex(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, domain.Some(domain.SexMale), sex)

	blood, err := store.BloodType(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, domain.Some(domain.BloodABNegative), blood)
}

func TestUpdateCharacteristicsKeepsAbsentFields(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))

	require.NoError(t, store.UpdateCharacteristics(ctx, owner, domain.Characteristics{
		BiologicalSex: domain.Some(domain.SexFemale),
	}))
	require.NoError(t, store.UpdateCharacteristics(ctx, owner, domain.Characteristics{
		BloodType: domain.Some(domain.BloodOPositive),
	}))

	sex, err := store.BiologicalSex(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, domain.Some(domain.SexFemale), sex)

	dob, err := store.DateOfBirth(ctx, owner)
	require.NoError(t, err)
	require.False(t, dob.Present())
}

func TestMissingCharacteristicsReadAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))

	sex, err := store.BiologicalSex(ctx, owner)
	require.NoError(t, err)
	require.False(t, sex.Present())
}

func TestDeniedTypesReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))
	require.NoError(t, store.RecordManualSample(ctx, owner, weightSample("w1", 70, time.Now().Add(-time.Hour))))

	samples, err := store.QuerySamples(ctx, owner, domain.SampleQuery{Type: domain.RecordBodyMass})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, domain.SourceManual, samples[0].Source)

	require.NoError(t, store.SetAuthorizationStatus(ctx, owner, domain.RecordBodyMass, domain.AccessRead, domain.AuthorizationDenied))
	samples, err = store.QuerySamples(ctx, owner, domain.SampleQuery{Type: domain.RecordBodyMass})
	require.NoError(t, err)
	require.Empty(t, samples)

	// A later authorization request does not override the denial.
	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))
	samples, err = store.QuerySamples(ctx, owner, domain.SampleQuery{Type: domain.RecordBodyMass})
	require.NoError(t, err)
	require.Empty(t, samples)
}

func TestSaveSampleRequiresWriteGrant(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	bmi := domain.Sample{
		ID:       "bmi-1",
		Type:     domain.RecordBodyMassIndex,
		Quantity: domain.NewQuantity(22.86, domain.UnitCount),
		StartAt:  time.Now(),
		EndAt:    time.Now(),
		Source:   domain.SourceApp,
	}
	err := store.SaveSample(ctx, owner, bmi)
	require.True(t, errors.Is(err, domain.ErrAuthorizationDenied))

	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))
	require.NoError(t, store.SaveSample(ctx, owner, bmi))

	// Body mass is readable but not writable through the app.
	err = store.SaveSample(ctx, owner, weightSample("w1", 70, time.Now()))
	require.True(t, errors.Is(err, domain.ErrAuthorizationDenied))
}

func TestQuerySamplesOrderRangeAndLimit(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))

	base := time.Now().Add(-24 * time.Hour).UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordManualSample(ctx, owner, weightSample(fmt.Sprintf("w%d", i), 70+float64(i), base.Add(time.Duration(i)*time.Hour))))
	}
	// Future samples fall outside the default upper bound.
	require.NoError(t, store.RecordManualSample(ctx, owner, weightSample("future", 99, time.Now().Add(time.Hour))))

	latest, err := store.QuerySamples(ctx, owner, domain.SampleQuery{Type: domain.RecordBodyMass, Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, "w2", latest[0].ID)

	asc, err := store.QuerySamples(ctx, owner, domain.SampleQuery{Type: domain.RecordBodyMass, Order: domain.SortStartAscending})
	require.NoError(t, err)
	require.Len(t, asc, 3)
	require.Equal(t, "w0", asc[0].ID)

	windowed, err := store.QuerySamples(ctx, owner, domain.SampleQuery{
		Type: domain.RecordBodyMass,
		From: base.Add(30 * time.Minute),
		To:   base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, "w1", windowed[0].ID)
	require.True(t, windowed[0].StartAt.Equal(base.Add(time.Hour)))
}

func TestWorkoutsPaginateAndCarryLinkedSamples(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	read := append(domain.DefaultAuthorizationRequest().Read(), domain.RecordDistanceWalkingRunning, domain.RecordActiveEnergyBurned)
	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.NewAuthorizationRequest(read, domain.DefaultAuthorizationRequest().Write())))

	base := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, store.SaveWorkout(ctx, owner, domain.Workout{
			ID:            fmt.Sprintf("run-%d", i),
			Activity:      domain.ActivityRunning,
			StartAt:       start,
			EndAt:         start.Add(30 * time.Minute),
			TotalEnergy:   domain.NewQuantity(300, domain.UnitKilocalorie),
			TotalDistance: domain.NewQuantity(5, domain.UnitKilometer),
		}))
	}
	require.NoError(t, store.AddSamplesToWorkout(ctx, owner, "run-4", []domain.Sample{{
		ID:       "dist-4",
		Type:     domain.RecordDistanceWalkingRunning,
		Quantity: domain.NewQuantity(5, domain.UnitKilometer),
		StartAt:  base.Add(96 * time.Hour),
		EndAt:    base.Add(96*time.Hour + 30*time.Minute),
		Source:   domain.SourceApp,
	}}))

	var (
		all    []domain.Workout
		cursor *domain.Cursor
	)
	for {
		page, next, err := store.QueryWorkouts(ctx, owner, domain.WorkoutQuery{Activity: domain.ActivityRunning, Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		all = append(all, page...)
		if next == nil {
			break
		}
		cursor = next
	}
	require.Len(t, all, 5)
	require.Equal(t, "run-4", all[0].ID)
	require.Equal(t, "run-0", all[4].ID)
	require.Len(t, all[0].LinkedSamples, 1)
	require.Equal(t, "run-4", all[0].LinkedSamples[0].WorkoutID)

	walks, _, err := store.QueryWorkouts(ctx, owner, domain.WorkoutQuery{Activity: domain.ActivityWalking})
	require.NoError(t, err)
	require.Empty(t, walks)
}

func TestAddSamplesToMissingWorkout(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))

	err := store.AddSamplesToWorkout(ctx, owner, "nope", []domain.Sample{{ID: "x", Type: domain.RecordActiveEnergyBurned}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func weightSample(id string, kg float64, at time.Time) domain.Sample {
	return domain.Sample{
		ID:       id,
		Type:     domain.RecordBodyMass,
		Quantity: domain.NewQuantity(kg, domain.UnitKilogram),
		StartAt:  at,
		EndAt:    at,
	}
}
