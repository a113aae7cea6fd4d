// Package sqlite implements the health store on an embedded SQLite file for
// single-user, on-device use. It emits no change events.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/observability"
	"example.com/healthprofile/internal/persistence"
	"example.com/healthprofile/internal/persistence/migrate"
	"example.com/healthprofile/internal/persistence/sqlite/migrations"
)

const dateLayout = "2006-01-02"

// Store is a HealthStore backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate.Up(ctx, db, goose.DialectSQLite3, fs.FS(migrations.FS)); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Available reports whether the store has an open database. It performs no I/O.
func (s *Store) Available() bool {
	return s != nil && s.db != nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// RequestAuthorization grants every type in req that has no recorded
// decision yet. Earlier denials stand.
func (s *Store) RequestAuthorization(ctx context.Context, owner domain.Owner, req domain.AuthorizationRequest) error {
	const stmt = `INSERT INTO authorization_grants (tenant_id, user_id, record_type, access_mode, status, updated_at)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT (tenant_id, user_id, record_type, access_mode) DO NOTHING`

	now := nanos(s.now())
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for mode, types := range map[domain.AccessMode][]domain.RecordType{
			domain.AccessRead:  req.Read(),
			domain.AccessWrite: req.Write(),
		} {
			for _, rt := range types {
				if _, err := tx.ExecContext(ctx, stmt, owner.TenantID, owner.UserID, string(rt), string(mode), string(domain.AuthorizationGranted), now); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SetAuthorizationStatus records an explicit decision for one type and mode.
func (s *Store) SetAuthorizationStatus(ctx context.Context, owner domain.Owner, rt domain.RecordType, mode domain.AccessMode, status domain.AuthorizationStatus) error {
	const stmt = `INSERT INTO authorization_grants (tenant_id, user_id, record_type, access_mode, status, updated_at)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT (tenant_id, user_id, record_type, access_mode)
        DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, stmt, owner.TenantID, owner.UserID, string(rt), string(mode), string(status), nanos(s.now()))
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func granted(ctx context.Context, q querier, owner domain.Owner, rt domain.RecordType, mode domain.AccessMode) (bool, error) {
	const query = `SELECT status FROM authorization_grants
        WHERE tenant_id=? AND user_id=? AND record_type=? AND access_mode=?`

	var status string
	err := q.QueryRowContext(ctx, query, owner.TenantID, owner.UserID, string(rt), string(mode)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return domain.AuthorizationStatus(status) == domain.AuthorizationGranted, nil
}

func requireWrite(ctx context.Context, q querier, owner domain.Owner, rt domain.RecordType) error {
	ok, err := granted(ctx, q, owner, rt, domain.AccessWrite)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: write %s", domain.ErrAuthorizationDenied, rt)
	}
	return nil
}

func (s *Store) readCharacteristic(ctx context.Context, owner domain.Owner, rt domain.RecordType, column string) (sql.NullString, error) {
	var value sql.NullString
	ok, err := granted(ctx, s.db, owner, rt, domain.AccessRead)
	if err != nil || !ok {
		return value, err
	}
	query := `SELECT ` + column + ` FROM characteristics WHERE tenant_id=? AND user_id=?`
	err = s.db.QueryRowContext(ctx, query, owner.TenantID, owner.UserID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return value, nil
	}
	return value, err
}

// DateOfBirth returns the stored birth date.
func (s *Store) DateOfBirth(ctx context.Context, owner domain.Owner) (domain.Optional[time.Time], error) {
	raw, err := s.readCharacteristic(ctx, owner, domain.RecordDateOfBirth, "date_of_birth")
	if err != nil || !raw.Valid {
		return domain.None[time.Time](), err
	}
	birth, err := time.Parse(dateLayout, raw.String)
	if err != nil {
		return domain.None[time.Time](), err
	}
	return domain.Some(birth), nil
}

// BiologicalSex returns the stored biological sex.
func (s *Store) BiologicalSex(ctx context.Context, owner domain.Owner) (domain.Optional[domain.BiologicalSex], error) {
	raw, err := s.readCharacteristic(ctx, owner, domain.RecordBiologicalSex, "biological_sex")
	if err != nil || !raw.Valid {
		return domain.None[domain.BiologicalSex](), err
	}
	sex, err := domain.ParseBiologicalSex(raw.String)
	if err != nil {
		return domain.None[domain.BiologicalSex](), err
	}
	return domain.Some(sex), nil
}

// BloodType returns the stored blood type.
func (s *Store) BloodType(ctx context.Context, owner domain.Owner) (domain.Optional[domain.BloodType], error) {
	raw, err := s.readCharacteristic(ctx, owner, domain.RecordBloodType, "blood_type")
	if err != nil || !raw.Valid {
		return domain.None[domain.BloodType](), err
	}
	blood, err := domain.ParseBloodType(raw.String)
	if err != nil {
		return domain.None[domain.BloodType](), err
	}
	return domain.Some(blood), nil
}

// UpdateCharacteristics upserts the owner's characteristics. Absent fields
// keep their stored value.
func (s *Store) UpdateCharacteristics(ctx context.Context, owner domain.Owner, c domain.Characteristics) error {
	const stmt = `INSERT INTO characteristics (tenant_id, user_id, date_of_birth, biological_sex, blood_type, updated_at)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT (tenant_id, user_id) DO UPDATE SET
            date_of_birth = COALESCE(excluded.date_of_birth, characteristics.date_of_birth),
            biological_sex = COALESCE(excluded.biological_sex, characteristics.biological_sex),
            blood_type = COALESCE(excluded.blood_type, characteristics.blood_type),
            updated_at = excluded.updated_at`

	birth := domain.MapOptional(c.DateOfBirth, func(t time.Time) string { return t.Format(dateLayout) })
	sex := domain.MapOptional(c.BiologicalSex, domain.BiologicalSex.Code)
	blood := domain.MapOptional(c.BloodType, domain.BloodType.Code)

	_, err := s.db.ExecContext(ctx, stmt, owner.TenantID, owner.UserID,
		nullString(birth), nullString(sex), nullString(blood), nanos(s.now()))
	return err
}

func nullString(o domain.Optional[string]) sql.NullString {
	v, ok := o.Get()
	return sql.NullString{String: v, Valid: ok}
}

const sampleColumns = `sample_id, record_type, value, unit, started_at, ended_at, COALESCE(workout_id, ''), source, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(row scanner) (domain.Sample, error) {
	var (
		s                         domain.Sample
		recordType, unit, source  string
		startAt, endAt, createdAt int64
	)
	if err := row.Scan(&s.ID, &recordType, &s.Quantity.Value, &unit, &startAt, &endAt, &s.WorkoutID, &source, &createdAt); err != nil {
		return domain.Sample{}, err
	}
	s.Type = domain.RecordType(recordType)
	s.Quantity.Unit = domain.Unit(unit)
	s.StartAt = fromNanos(startAt)
	s.EndAt = fromNanos(endAt)
	s.Source = domain.SampleSource(source)
	s.CreatedAt = fromNanos(createdAt)
	return s, nil
}

// QuerySamples returns samples of one type whose start lies in the range.
func (s *Store) QuerySamples(ctx context.Context, owner domain.Owner, q domain.SampleQuery) ([]domain.Sample, error) {
	ok, err := granted(ctx, s.db, owner, q.Type, domain.AccessRead)
	if err != nil || !ok {
		return nil, err
	}

	from := int64(-1 << 63)
	if !q.From.IsZero() {
		from = nanos(q.From)
	}
	to := s.now()
	if !q.To.IsZero() {
		to = q.To
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + sampleColumns + ` FROM samples
        WHERE tenant_id=? AND user_id=? AND record_type=? AND started_at >= ? AND started_at <= ?`)
	if q.Order == domain.SortStartAscending {
		b.WriteString(` ORDER BY started_at ASC, sample_id ASC`)
	} else {
		b.WriteString(` ORDER BY started_at DESC, sample_id DESC`)
	}
	args := []any{owner.TenantID, owner.UserID, string(q.Type), from, nanos(to)}
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sample)
	}
	return results, rows.Err()
}

// QueryWorkouts returns one page of workouts, start descending, with the
// readable linked samples attached.
func (s *Store) QueryWorkouts(ctx context.Context, owner domain.Owner, q domain.WorkoutQuery) ([]domain.Workout, *domain.Cursor, error) {
	ok, err := granted(ctx, s.db, owner, domain.RecordWorkout, domain.AccessRead)
	if err != nil || !ok {
		return nil, nil, err
	}

	limit := persistence.PageSize(q.Limit)
	args := []any{owner.TenantID, owner.UserID, string(q.Activity)}
	query := `SELECT workout_id, activity, started_at, ended_at, energy_value, energy_unit, distance_value, distance_unit, created_at
        FROM workouts WHERE tenant_id=? AND user_id=? AND activity=?`
	if q.Cursor != nil {
		start := nanos(q.Cursor.StartAt)
		query += ` AND (started_at < ? OR (started_at = ? AND workout_id < ?))`
		args = append(args, start, start, q.Cursor.ID)
	}
	query += ` ORDER BY started_at DESC, workout_id DESC LIMIT ?`
	args = append(args, limit)

	results, err := s.scanWorkouts(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	if err := s.attachLinkedSamples(ctx, owner, results); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartAt: last.StartAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

func (s *Store) scanWorkouts(ctx context.Context, query string, args ...any) ([]domain.Workout, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Workout
	for rows.Next() {
		var (
			w                              domain.Workout
			activity, energyUnit, distUnit string
			startAt, endAt, createdAt      int64
		)
		if err := rows.Scan(&w.ID, &activity, &startAt, &endAt, &w.TotalEnergy.Value, &energyUnit, &w.TotalDistance.Value, &distUnit, &createdAt); err != nil {
			return nil, err
		}
		w.Activity = domain.ActivityKind(activity)
		w.StartAt = fromNanos(startAt)
		w.EndAt = fromNanos(endAt)
		w.TotalEnergy.Unit = domain.Unit(energyUnit)
		w.TotalDistance.Unit = domain.Unit(distUnit)
		w.CreatedAt = fromNanos(createdAt)
		results = append(results, w)
	}
	return results, rows.Err()
}

func (s *Store) attachLinkedSamples(ctx context.Context, owner domain.Owner, workouts []domain.Workout) error {
	if len(workouts) == 0 {
		return nil
	}
	index := make(map[string]int, len(workouts))
	args := []any{owner.TenantID, owner.UserID}
	placeholders := make([]string, len(workouts))
	for i, w := range workouts {
		index[w.ID] = i
		placeholders[i] = "?"
		args = append(args, w.ID)
	}

	query := `SELECT ` + sampleColumns + ` FROM samples s
        WHERE s.tenant_id=? AND s.user_id=? AND s.workout_id IN (` + strings.Join(placeholders, ",") + `)
          AND EXISTS (SELECT 1 FROM authorization_grants g
                      WHERE g.tenant_id=s.tenant_id AND g.user_id=s.user_id AND g.record_type=s.record_type
                        AND g.access_mode='read' AND g.status='granted')
        ORDER BY s.started_at, s.sample_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return err
		}
		i := index[sample.WorkoutID]
		workouts[i].LinkedSamples = append(workouts[i].LinkedSamples, sample)
	}
	return rows.Err()
}

// SaveSample persists a sample the owner has write access to.
func (s *Store) SaveSample(ctx context.Context, owner domain.Owner, sample domain.Sample) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireWrite(ctx, tx, owner, sample.Type); err != nil {
			return err
		}
		return s.insertSample(ctx, tx, owner, sample)
	})
	if err != nil {
		return err
	}
	observability.RecordSamplePersisted(string(sample.Type), sample.StartAt)
	return nil
}

// RecordManualSample persists a sample entered by the owner.
func (s *Store) RecordManualSample(ctx context.Context, owner domain.Owner, sample domain.Sample) error {
	sample.Source = domain.SourceManual
	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertSample(ctx, tx, owner, sample)
	}); err != nil {
		return err
	}
	observability.RecordSamplePersisted(string(sample.Type), sample.StartAt)
	return nil
}

// SaveWorkout persists a workout the owner has write access to.
func (s *Store) SaveWorkout(ctx context.Context, owner domain.Owner, w domain.Workout) error {
	const stmt = `INSERT INTO workouts (workout_id, tenant_id, user_id, activity, started_at, ended_at, energy_value, energy_unit, distance_value, distance_unit, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)`

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireWrite(ctx, tx, owner, domain.RecordWorkout); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, stmt,
			w.ID,
			owner.TenantID,
			owner.UserID,
			string(w.Activity),
			nanos(w.StartAt),
			nanos(w.EndAt),
			w.TotalEnergy.Value,
			string(w.TotalEnergy.Unit),
			w.TotalDistance.Value,
			string(w.TotalDistance.Unit),
			nanos(s.now()),
		)
		return err
	})
	if err != nil {
		return err
	}
	observability.RecordWorkoutPersisted(w.StartAt)
	return nil
}

// AddSamplesToWorkout persists samples linked to an existing workout.
func (s *Store) AddSamplesToWorkout(ctx context.Context, owner domain.Owner, workoutID string, samples []domain.Sample) error {
	const exists = `SELECT 1 FROM workouts WHERE tenant_id=? AND user_id=? AND workout_id=?`

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, exists, owner.TenantID, owner.UserID, workoutID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("workout %s not found", workoutID)
			}
			return err
		}
		for _, sample := range samples {
			if err := requireWrite(ctx, tx, owner, sample.Type); err != nil {
				return err
			}
			sample.WorkoutID = workoutID
			if err := s.insertSample(ctx, tx, owner, sample); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, sample := range samples {
		observability.RecordSamplePersisted(string(sample.Type), sample.StartAt)
	}
	return nil
}

func (s *Store) insertSample(ctx context.Context, tx *sql.Tx, owner domain.Owner, sample domain.Sample) error {
	const stmt = `INSERT INTO samples (sample_id, tenant_id, user_id, record_type, value, unit, started_at, ended_at, workout_id, source, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)`

	workoutID := sql.NullString{String: sample.WorkoutID, Valid: sample.WorkoutID != ""}
	_, err := tx.ExecContext(ctx, stmt,
		sample.ID,
		owner.TenantID,
		owner.UserID,
		string(sample.Type),
		sample.Quantity.Value,
		string(sample.Quantity.Unit),
		nanos(sample.StartAt),
		nanos(sample.EndAt),
		workoutID,
		string(sample.Source),
		nanos(s.now()),
	)
	return err
}
