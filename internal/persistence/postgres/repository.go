// Package postgres implements the health store on Postgres with a
// transactional outbox for change events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/events"
	"example.com/healthprofile/internal/observability"
	"example.com/healthprofile/internal/persistence"
)

const dateLayout = "2006-01-02"

// Repository provides Postgres-backed persistence for health records and
// outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Available reports whether the repository has a pool. It performs no I/O.
func (r *Repository) Available() bool {
	return r != nil && r.pool != nil
}

// inTenant runs fn inside a transaction scoped to the owner's tenant.
func (r *Repository) inTenant(ctx context.Context, owner domain.Owner, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", owner.TenantID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RequestAuthorization grants every type in req that has no recorded
// decision yet. Earlier denials stand.
func (r *Repository) RequestAuthorization(ctx context.Context, owner domain.Owner, req domain.AuthorizationRequest) error {
	const stmt = `INSERT INTO authorization_grants (tenant_id, user_id, record_type, access_mode, status)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tenant_id, user_id, record_type, access_mode) DO NOTHING`

	return r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		for mode, types := range map[domain.AccessMode][]domain.RecordType{
			domain.AccessRead:  req.Read(),
			domain.AccessWrite: req.Write(),
		} {
			for _, rt := range types {
				if _, err := tx.Exec(ctx, stmt, owner.TenantID, owner.UserID, string(rt), string(mode), string(domain.AuthorizationGranted)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SetAuthorizationStatus records an explicit decision for one type and mode.
func (r *Repository) SetAuthorizationStatus(ctx context.Context, owner domain.Owner, rt domain.RecordType, mode domain.AccessMode, status domain.AuthorizationStatus) error {
	const stmt = `INSERT INTO authorization_grants (tenant_id, user_id, record_type, access_mode, status, updated_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (tenant_id, user_id, record_type, access_mode)
        DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

	return r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, owner.TenantID, owner.UserID, string(rt), string(mode), string(status))
		return err
	})
}

func granted(ctx context.Context, tx pgx.Tx, owner domain.Owner, rt domain.RecordType, mode domain.AccessMode) (bool, error) {
	const query = `SELECT status FROM authorization_grants
        WHERE tenant_id=$1 AND user_id=$2 AND record_type=$3 AND access_mode=$4`

	var status string
	err := tx.QueryRow(ctx, query, owner.TenantID, owner.UserID, string(rt), string(mode)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return domain.AuthorizationStatus(status) == domain.AuthorizationGranted, nil
}

func requireWrite(ctx context.Context, tx pgx.Tx, owner domain.Owner, rt domain.RecordType) error {
	ok, err := granted(ctx, tx, owner, rt, domain.AccessWrite)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: write %s", domain.ErrAuthorizationDenied, rt)
	}
	return nil
}

// readCharacteristic returns one characteristics column as text. It is nil
// when the column is NULL, the row is missing, or read access is not granted.
func (r *Repository) readCharacteristic(ctx context.Context, owner domain.Owner, rt domain.RecordType, column string) (*string, error) {
	query := `SELECT ` + column + ` FROM characteristics WHERE tenant_id=$1 AND user_id=$2`

	var value *string
	err := r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		ok, err := granted(ctx, tx, owner, rt, domain.AccessRead)
		if err != nil || !ok {
			return err
		}
		err = tx.QueryRow(ctx, query, owner.TenantID, owner.UserID).Scan(&value)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	})
	return value, err
}

// DateOfBirth returns the stored birth date.
func (r *Repository) DateOfBirth(ctx context.Context, owner domain.Owner) (domain.Optional[time.Time], error) {
	raw, err := r.readCharacteristic(ctx, owner, domain.RecordDateOfBirth, "to_char(date_of_birth, 'YYYY-MM-DD')")
	if err != nil || raw == nil {
		return domain.None[time.Time](), err
	}
	birth, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return domain.None[time.Time](), err
	}
	return domain.Some(birth), nil
}

// BiologicalSex returns the stored biological sex.
func (r *Repository) BiologicalSex(ctx context.Context, owner domain.Owner) (domain.Optional[domain.BiologicalSex], error) {
	raw, err := r.readCharacteristic(ctx, owner, domain.RecordBiologicalSex, "biological_sex")
	if err != nil || raw == nil {
		return domain.None[domain.BiologicalSex](), err
	}
	sex, err := domain.ParseBiologicalSex(*raw)
	if err != nil {
		return domain.None[domain.BiologicalSex](), err
	}
	return domain.Some(sex), nil
}

// BloodType returns the stored blood type.
func (r *Repository) BloodType(ctx context.Context, owner domain.Owner) (domain.Optional[domain.BloodType], error) {
	raw, err := r.readCharacteristic(ctx, owner, domain.RecordBloodType, "blood_type")
	if err != nil || raw == nil {
		return domain.None[domain.BloodType](), err
	}
	blood, err := domain.ParseBloodType(*raw)
	if err != nil {
		return domain.None[domain.BloodType](), err
	}
	return domain.Some(blood), nil
}

// UpdateCharacteristics upserts the owner's characteristics. Absent fields
// keep their stored value.
func (r *Repository) UpdateCharacteristics(ctx context.Context, owner domain.Owner, c domain.Characteristics) error {
	const stmt = `INSERT INTO characteristics (tenant_id, user_id, date_of_birth, biological_sex, blood_type, updated_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (tenant_id, user_id) DO UPDATE SET
            date_of_birth = COALESCE(EXCLUDED.date_of_birth, characteristics.date_of_birth),
            biological_sex = COALESCE(EXCLUDED.biological_sex, characteristics.biological_sex),
            blood_type = COALESCE(EXCLUDED.blood_type, characteristics.blood_type),
            updated_at = EXCLUDED.updated_at`

	sex := domain.MapOptional(c.BiologicalSex, domain.BiologicalSex.Code)
	blood := domain.MapOptional(c.BloodType, domain.BloodType.Code)

	return r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, owner.TenantID, owner.UserID, c.DateOfBirth.Ptr(), sex.Ptr(), blood.Ptr())
		return err
	})
}

const sampleColumns = `sample_id, record_type, value, unit, started_at, ended_at, COALESCE(workout_id, ''), source, created_at`

func scanSample(row pgx.Row) (domain.Sample, error) {
	var (
		s          domain.Sample
		recordType string
		unit       string
		source     string
	)
	if err := row.Scan(&s.ID, &recordType, &s.Quantity.Value, &unit, &s.StartAt, &s.EndAt, &s.WorkoutID, &source, &s.CreatedAt); err != nil {
		return domain.Sample{}, err
	}
	s.Type = domain.RecordType(recordType)
	s.Quantity.Unit = domain.Unit(unit)
	s.Source = domain.SampleSource(source)
	return s, nil
}

// QuerySamples returns samples of one type whose start lies in the range.
func (r *Repository) QuerySamples(ctx context.Context, owner domain.Owner, q domain.SampleQuery) ([]domain.Sample, error) {
	to := q.To
	if to.IsZero() {
		to = time.Now()
	}
	args := []interface{}{owner.TenantID, owner.UserID, string(q.Type), q.From, to}
	query := `SELECT ` + sampleColumns + ` FROM samples
        WHERE tenant_id=$1 AND user_id=$2 AND record_type=$3 AND started_at >= $4 AND started_at <= $5`

	if q.Order == domain.SortStartAscending {
		query += ` ORDER BY started_at ASC, sample_id ASC`
	} else {
		query += ` ORDER BY started_at DESC, sample_id DESC`
	}
	if q.Limit > 0 {
		query += ` LIMIT $6`
		args = append(args, q.Limit)
	}

	var results []domain.Sample
	err := r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		ok, err := granted(ctx, tx, owner, q.Type, domain.AccessRead)
		if err != nil || !ok {
			return err
		}
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSample(rows)
			if err != nil {
				return err
			}
			results = append(results, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// QueryWorkouts returns one page of workouts, start descending, with the
// readable linked samples attached.
func (r *Repository) QueryWorkouts(ctx context.Context, owner domain.Owner, q domain.WorkoutQuery) ([]domain.Workout, *domain.Cursor, error) {
	limit := persistence.PageSize(q.Limit)
	args := []interface{}{owner.TenantID, owner.UserID, string(q.Activity), limit}
	query := `SELECT workout_id, activity, started_at, ended_at, energy_value, energy_unit, distance_value, distance_unit, created_at
        FROM workouts WHERE tenant_id=$1 AND user_id=$2 AND activity=$3`

	if q.Cursor != nil {
		query += ` AND (started_at, workout_id) < ($5, $6)`
		args = append(args, q.Cursor.StartAt, q.Cursor.ID)
	}
	query += ` ORDER BY started_at DESC, workout_id DESC LIMIT $4`

	results := make([]domain.Workout, 0, limit)
	err := r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		ok, err := granted(ctx, tx, owner, domain.RecordWorkout, domain.AccessRead)
		if err != nil || !ok {
			return err
		}
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				w                        domain.Workout
				activity                 string
				energyUnit, distanceUnit string
			)
			if err := rows.Scan(&w.ID, &activity, &w.StartAt, &w.EndAt, &w.TotalEnergy.Value, &energyUnit, &w.TotalDistance.Value, &distanceUnit, &w.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			w.Activity = domain.ActivityKind(activity)
			w.TotalEnergy.Unit = domain.Unit(energyUnit)
			w.TotalDistance.Unit = domain.Unit(distanceUnit)
			results = append(results, w)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		return attachLinkedSamples(ctx, tx, owner, results)
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartAt: last.StartAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

func attachLinkedSamples(ctx context.Context, tx pgx.Tx, owner domain.Owner, workouts []domain.Workout) error {
	if len(workouts) == 0 {
		return nil
	}
	ids := make([]string, len(workouts))
	index := make(map[string]int, len(workouts))
	for i, w := range workouts {
		ids[i] = w.ID
		index[w.ID] = i
	}

	const query = `SELECT ` + sampleColumns + ` FROM samples s
        WHERE s.tenant_id=$1 AND s.user_id=$2 AND s.workout_id = ANY($3)
          AND EXISTS (SELECT 1 FROM authorization_grants g
                      WHERE g.tenant_id=s.tenant_id AND g.user_id=s.user_id AND g.record_type=s.record_type
                        AND g.access_mode='read' AND g.status='granted')
        ORDER BY s.started_at, s.sample_id`

	rows, err := tx.Query(ctx, query, owner.TenantID, owner.UserID, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return err
		}
		i := index[s.WorkoutID]
		workouts[i].LinkedSamples = append(workouts[i].LinkedSamples, s)
	}
	return rows.Err()
}

// SaveSample persists a sample the owner has write access to.
func (r *Repository) SaveSample(ctx context.Context, owner domain.Owner, s domain.Sample) error {
	err := r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		if err := requireWrite(ctx, tx, owner, s.Type); err != nil {
			return err
		}
		return insertSample(ctx, tx, owner, s)
	})
	if err != nil {
		return err
	}
	observability.RecordSamplePersisted(string(s.Type), s.StartAt)
	return nil
}

// RecordManualSample persists a sample entered by the owner.
func (r *Repository) RecordManualSample(ctx context.Context, owner domain.Owner, s domain.Sample) error {
	s.Source = domain.SourceManual
	if err := r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		return insertSample(ctx, tx, owner, s)
	}); err != nil {
		return err
	}
	observability.RecordSamplePersisted(string(s.Type), s.StartAt)
	return nil
}

// SaveWorkout persists a workout the owner has write access to.
func (r *Repository) SaveWorkout(ctx context.Context, owner domain.Owner, w domain.Workout) error {
	const stmt = `INSERT INTO workouts (workout_id, tenant_id, user_id, activity, started_at, ended_at, energy_value, energy_unit, distance_value, distance_unit)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	err := r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		if err := requireWrite(ctx, tx, owner, domain.RecordWorkout); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, stmt,
			w.ID,
			owner.TenantID,
			owner.UserID,
			string(w.Activity),
			w.StartAt,
			w.EndAt,
			w.TotalEnergy.Value,
			string(w.TotalEnergy.Unit),
			w.TotalDistance.Value,
			string(w.TotalDistance.Unit),
		); err != nil {
			return err
		}
		energy, _ := w.TotalEnergy.In(domain.UnitKilocalorie)
		distance, _ := w.TotalDistance.In(domain.UnitMeter)
		return insertOutbox(ctx, tx, owner, "workout", w.ID, events.TypeWorkoutSaved, events.WorkoutSaved{
			WorkoutID:     w.ID,
			TenantID:      owner.TenantID,
			UserID:        owner.UserID,
			Activity:      string(w.Activity),
			StartAt:       w.StartAt,
			EndAt:         w.EndAt,
			DurationSec:   w.Duration().Seconds(),
			EnergyKcal:    energy,
			DistanceMeter: distance,
		})
	})
	if err != nil {
		return err
	}
	observability.RecordWorkoutPersisted(w.StartAt)
	return nil
}

// AddSamplesToWorkout persists samples linked to an existing workout.
func (r *Repository) AddSamplesToWorkout(ctx context.Context, owner domain.Owner, workoutID string, samples []domain.Sample) error {
	const exists = `SELECT 1 FROM workouts WHERE tenant_id=$1 AND user_id=$2 AND workout_id=$3`

	err := r.inTenant(ctx, owner, func(tx pgx.Tx) error {
		var one int
		if err := tx.QueryRow(ctx, exists, owner.TenantID, owner.UserID, workoutID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("workout %s not found", workoutID)
			}
			return err
		}
		for _, s := range samples {
			if err := requireWrite(ctx, tx, owner, s.Type); err != nil {
				return err
			}
			s.WorkoutID = workoutID
			if err := insertSample(ctx, tx, owner, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, s := range samples {
		observability.RecordSamplePersisted(string(s.Type), s.StartAt)
	}
	return nil
}

func insertSample(ctx context.Context, tx pgx.Tx, owner domain.Owner, s domain.Sample) error {
	const stmt = `INSERT INTO samples (sample_id, tenant_id, user_id, record_type, value, unit, started_at, ended_at, workout_id, source)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	if _, err := tx.Exec(ctx, stmt,
		s.ID,
		owner.TenantID,
		owner.UserID,
		string(s.Type),
		s.Quantity.Value,
		string(s.Quantity.Unit),
		s.StartAt,
		s.EndAt,
		nullIfEmpty(s.WorkoutID),
		string(s.Source),
	); err != nil {
		return err
	}
	return insertOutbox(ctx, tx, owner, "sample", s.ID, events.TypeSampleSaved, events.SampleSaved{
		SampleID:   s.ID,
		TenantID:   owner.TenantID,
		UserID:     owner.UserID,
		RecordType: string(s.Type),
		Value:      s.Quantity.Value,
		Unit:       string(s.Quantity.Unit),
		StartAt:    s.StartAt,
		EndAt:      s.EndAt,
		WorkoutID:  s.WorkoutID,
		Source:     string(s.Source),
	})
}

func insertOutbox(ctx context.Context, tx pgx.Tx, owner domain.Owner, aggregateType, aggregateID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		owner.TenantID,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(owner, aggregateID),
		body,
		fmt.Sprintf("%s:%s", aggregateID, eventType),
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(owner domain.Owner, aggregateID string) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeSampleSaved: {
		Topic:         "health_sample_events",
		SchemaSubject: "health_sample_events-value",
		PartitionKeyFn: func(o domain.Owner, _ string) string {
			return o.String()
		},
	},
	events.TypeWorkoutSaved: {
		Topic:         "health_workout_events",
		SchemaSubject: "health_workout_events-value",
		PartitionKeyFn: func(o domain.Owner, _ string) string {
			return o.String()
		},
	},
}
