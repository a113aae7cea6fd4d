//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/persistence/postgres"
	"example.com/healthprofile/internal/testsupport/pgtest"
)

func TestRepositoryCharacteristicsAndGrants(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)
	repo := postgres.NewRepository(pool)
	owner := domain.Owner{TenantID: uuid.NewString(), UserID: uuid.NewString()}

	birth := time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateCharacteristics(ctx, owner, domain.Characteristics{
		DateOfBirth:   domain.Some(birth),
		BiologicalSex: domain.Some(domain.SexFemale),
		BloodType:     domain.Some(domain.BloodAPositive),
	}))

	// Nothing is readable before authorization.
	dob, err := repo.DateOfBirth(ctx, owner)
	require.NoError(t, err)
	require.False(t, dob.Present())

	require.NoError(t, repo.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))

	dob, err = repo.DateOfBirth(ctx, owner)
	require.NoError(t, err)
	got, ok := dob.Get()
	require.True(t, ok)
	require.True(t, birth.Equal(got))

	sex, err := repo.BiologicalSex(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, domain.Some(domain.SexFemale), sex)

	// Absent fields leave the stored value alone.
	require.NoError(t, repo.UpdateCharacteristics(ctx, owner, domain.Characteristics{
		BloodType: domain.Some(domain.BloodONegative),
	}))
	sex, err = repo.BiologicalSex(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, domain.Some(domain.SexFemale), sex)
	blood, err := repo.BloodType(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, domain.Some(domain.BloodONegative), blood)

	require.NoError(t, repo.SetAuthorizationStatus(ctx, owner, domain.RecordBloodType, domain.AccessRead, domain.AuthorizationDenied))
	blood, err = repo.BloodType(ctx, owner)
	require.NoError(t, err)
	require.False(t, blood.Present())

	// Other tenants see nothing.
	other := domain.Owner{TenantID: uuid.NewString(), UserID: owner.UserID}
	require.NoError(t, repo.RequestAuthorization(ctx, other, domain.DefaultAuthorizationRequest()))
	dob, err = repo.DateOfBirth(ctx, other)
	require.NoError(t, err)
	require.False(t, dob.Present())
}

func TestRepositorySamplesWorkoutsAndOutbox(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)
	repo := postgres.NewRepository(pool)
	owner := domain.Owner{TenantID: uuid.NewString(), UserID: uuid.NewString()}

	sample := domain.Sample{
		ID:       uuid.NewString(),
		Type:     domain.RecordBodyMassIndex,
		Quantity: domain.NewQuantity(22.5, domain.UnitCount),
		StartAt:  time.Now().UTC().Add(-time.Minute),
		EndAt:    time.Now().UTC().Add(-time.Minute),
		Source:   domain.SourceApp,
	}
	err := repo.SaveSample(ctx, owner, sample)
	require.True(t, errors.Is(err, domain.ErrAuthorizationDenied))

	require.NoError(t, repo.RequestAuthorization(ctx, owner, domain.DefaultAuthorizationRequest()))
	require.NoError(t, repo.SaveSample(ctx, owner, sample))

	start := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Microsecond)
	workout := domain.Workout{
		ID:            uuid.NewString(),
		Activity:      domain.ActivityRunning,
		StartAt:       start,
		EndAt:         start.Add(30 * time.Minute),
		TotalEnergy:   domain.NewQuantity(300, domain.UnitKilocalorie),
		TotalDistance: domain.NewQuantity(5, domain.UnitKilometer),
	}
	require.NoError(t, repo.SaveWorkout(ctx, owner, workout))
	require.NoError(t, repo.AddSamplesToWorkout(ctx, owner, workout.ID, []domain.Sample{{
		ID:       uuid.NewString(),
		Type:     domain.RecordDistanceWalkingRunning,
		Quantity: domain.NewQuantity(5, domain.UnitKilometer),
		StartAt:  workout.StartAt,
		EndAt:    workout.EndAt,
		Source:   domain.SourceApp,
	}}))

	workouts, next, err := repo.QueryWorkouts(ctx, owner, domain.WorkoutQuery{Activity: domain.ActivityRunning, Limit: 10})
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, workouts, 1)
	require.Equal(t, workout.ID, workouts[0].ID)
	require.Equal(t, 30*time.Minute, workouts[0].Duration())
	// Distance is not in the default read set, so the link is not visible.
	require.Empty(t, workouts[0].LinkedSamples)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE tenant_id=$1`, owner.TenantID).Scan(&outboxRows))
	require.Equal(t, 3, outboxRows)

	err = repo.AddSamplesToWorkout(ctx, owner, uuid.NewString(), nil)
	require.Error(t, err)
}
