// Package gateway is the facade the rest of the service uses to talk to the
// health store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/observability"
)

const defaultPageSize = 100

// Option configures optional behaviour for the Gateway.
type Option func(*Gateway)

// WithLogger overrides the logger used to report soft failures.
func WithLogger(logger *log.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithClock overrides the time source used for ages and query bounds.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithPageSize sets how many workouts are fetched per store round trip.
func WithPageSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.pageSize = n
		}
	}
}

// Gateway reads and writes one owner's records. Calls are synchronous; the
// caller decides what runs concurrently.
type Gateway struct {
	store    domain.HealthStore
	owner    domain.Owner
	logger   *log.Logger
	now      func() time.Time
	tracer   trace.Tracer
	pageSize int
}

// New constructs a Gateway. A nil store yields a gateway that reports
// ErrStoreUnavailable.
func New(store domain.HealthStore, owner domain.Owner, opts ...Option) *Gateway {
	g := &Gateway{
		store:    store,
		owner:    owner,
		logger:   log.New(log.Writer(), "[gateway] ", log.LstdFlags),
		now:      time.Now,
		tracer:   otel.Tracer("example.com/healthprofile/internal/gateway"),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether the host has a health store at all.
func (g *Gateway) Available() bool {
	return g.store != nil && g.store.Available()
}

// Authorize asks the store for the read and write sets in req. A nil error
// does not mean every type was granted.
func (g *Gateway) Authorize(ctx context.Context, req domain.AuthorizationRequest) (err error) {
	ctx, span := g.start(ctx, "Authorize")
	defer func() { g.finish(span, "authorize", err) }()

	if !g.Available() {
		return domain.ErrStoreUnavailable
	}
	if err := g.store.RequestAuthorization(ctx, g.owner, req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthorizationDenied, err)
	}
	return nil
}

// SetAccess records the owner's decision for one record type and mode, the
// way a settings screen would revoke or restore a permission.
func (g *Gateway) SetAccess(ctx context.Context, rt domain.RecordType, mode domain.AccessMode, status domain.AuthorizationStatus) (err error) {
	ctx, span := g.start(ctx, "SetAccess", attribute.String("record_type", string(rt)))
	defer func() { g.finish(span, "set_access", err) }()

	if !g.Available() {
		return domain.ErrStoreUnavailable
	}
	if !rt.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnknownRecordType, rt)
	}
	return g.store.SetAuthorizationStatus(ctx, g.owner, rt, mode, status)
}

// ReadProfile reads the three characteristics independently. Any single
// failure is logged and leaves that field absent.
func (g *Gateway) ReadProfile(ctx context.Context) domain.Profile {
	ctx, span := g.start(ctx, "ReadProfile")
	defer span.End()

	var profile domain.Profile
	if !g.Available() {
		g.logger.Printf("error reading profile: %v", domain.ErrStoreUnavailable)
		observability.RecordGatewayOperation("read_profile", observability.OutcomeUnavailable)
		return profile
	}

	failures := 0
	if birth, err := g.store.DateOfBirth(ctx, g.owner); err != nil {
		failures++
		g.logger.Printf("error reading birthday: %v", err)
	} else {
		now := g.now()
		profile.Age = domain.MapOptional(birth, func(b time.Time) int { return domain.AgeAt(b, now) })
	}

	if sex, err := g.store.BiologicalSex(ctx, g.owner); err != nil {
		failures++
		g.logger.Printf("error reading biological sex: %v", err)
	} else {
		profile.BiologicalSex = sex
	}

	if blood, err := g.store.BloodType(ctx, g.owner); err != nil {
		failures++
		g.logger.Printf("error reading blood type: %v", err)
	} else {
		profile.BloodType = blood
	}

	span.SetAttributes(attribute.Int("profile.read_failures", failures))
	outcome := observability.OutcomeOK
	if failures > 0 {
		outcome = observability.OutcomeError
	}
	observability.RecordGatewayOperation("read_profile", outcome)
	return profile
}

// ReadMostRecentSample returns the sample of rt with the latest start time.
func (g *Gateway) ReadMostRecentSample(ctx context.Context, rt domain.RecordType) (sample domain.Optional[domain.Sample], err error) {
	ctx, span := g.start(ctx, "ReadMostRecentSample", attribute.String("record_type", string(rt)))
	defer func() {
		if err == nil && !sample.Present() {
			span.End()
			observability.RecordGatewayOperation("read_sample", observability.OutcomeEmpty)
			return
		}
		g.finish(span, "read_sample", err)
	}()

	if !g.Available() {
		return domain.None[domain.Sample](), domain.ErrStoreUnavailable
	}
	if rt.Kind() != domain.KindQuantity {
		return domain.None[domain.Sample](), fmt.Errorf("%w: %s is not a quantity type", domain.ErrUnknownRecordType, rt)
	}

	samples, err := g.store.QuerySamples(ctx, g.owner, domain.SampleQuery{
		Type:  rt,
		To:    g.now(),
		Order: domain.SortStartDescending,
		Limit: 1,
	})
	if err != nil {
		return domain.None[domain.Sample](), fmt.Errorf("%w: %s: %w", domain.ErrQueryFailed, rt, err)
	}
	if len(samples) == 0 {
		return domain.None[domain.Sample](), nil
	}
	return domain.Some(samples[0]), nil
}

// ReadAllWorkouts returns every workout of kind, most recent first.
func (g *Gateway) ReadAllWorkouts(ctx context.Context, kind domain.ActivityKind) (workouts []domain.Workout, err error) {
	ctx, span := g.start(ctx, "ReadAllWorkouts", attribute.String("activity", string(kind)))
	defer func() { g.finish(span, "read_workouts", err) }()

	if !g.Available() {
		return nil, domain.ErrStoreUnavailable
	}

	var cursor *domain.Cursor
	for {
		page, next, err := g.store.QueryWorkouts(ctx, g.owner, domain.WorkoutQuery{
			Activity: kind,
			Cursor:   cursor,
			Limit:    g.pageSize,
		})
		if err != nil {
			g.logger.Printf("there was an error while reading the workouts: %v", err)
			return workouts, fmt.Errorf("%w: workouts: %w", domain.ErrQueryFailed, err)
		}
		workouts = append(workouts, page...)
		if next == nil || len(page) == 0 {
			break
		}
		cursor = next
	}
	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))
	return workouts, nil
}

// ReadWorkoutsPage returns one page of workouts of kind, most recent first,
// and the cursor for the next page.
func (g *Gateway) ReadWorkoutsPage(ctx context.Context, kind domain.ActivityKind, cursor *domain.Cursor, limit int) (workouts []domain.Workout, next *domain.Cursor, err error) {
	ctx, span := g.start(ctx, "ReadWorkoutsPage", attribute.String("activity", string(kind)))
	defer func() { g.finish(span, "read_workouts", err) }()

	if !g.Available() {
		return nil, nil, domain.ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = g.pageSize
	}
	workouts, next, err = g.store.QueryWorkouts(ctx, g.owner, domain.WorkoutQuery{
		Activity: kind,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: workouts: %w", domain.ErrQueryFailed, err)
	}
	return workouts, next, nil
}

// EnterCharacteristics records characteristics typed in by the owner.
// Absent fields keep their stored value.
func (g *Gateway) EnterCharacteristics(ctx context.Context, c domain.Characteristics) (err error) {
	ctx, span := g.start(ctx, "EnterCharacteristics")
	defer func() { g.finish(span, "enter_characteristics", err) }()

	if !g.Available() {
		return domain.ErrStoreUnavailable
	}
	if err := g.store.UpdateCharacteristics(ctx, g.owner, c); err != nil {
		return fmt.Errorf("%w: characteristics: %w", domain.ErrSaveFailed, err)
	}
	return nil
}

// EnterSample records a measurement typed in by the owner, such as a new
// weight. A zero ts means now.
func (g *Gateway) EnterSample(ctx context.Context, rt domain.RecordType, quantity domain.Quantity, ts time.Time) (sample domain.Sample, err error) {
	ctx, span := g.start(ctx, "EnterSample", attribute.String("record_type", string(rt)))
	defer func() { g.finish(span, "enter_sample", err) }()

	if !g.Available() {
		return domain.Sample{}, domain.ErrStoreUnavailable
	}
	if err := checkQuantity(rt, quantity); err != nil {
		return domain.Sample{}, err
	}
	if ts.IsZero() {
		ts = g.now()
	}
	sample = domain.Sample{
		ID:       uuid.NewString(),
		Type:     rt,
		Quantity: quantity,
		StartAt:  ts,
		EndAt:    ts,
		Source:   domain.SourceManual,
	}
	if err := g.store.RecordManualSample(ctx, g.owner, sample); err != nil {
		return domain.Sample{}, fmt.Errorf("%w: %s: %w", domain.ErrSaveFailed, rt, err)
	}
	return sample, nil
}

// SaveDerivedSample writes one instantaneous sample stamped at ts.
func (g *Gateway) SaveDerivedSample(ctx context.Context, rt domain.RecordType, quantity domain.Quantity, ts time.Time) (err error) {
	ctx, span := g.start(ctx, "SaveDerivedSample", attribute.String("record_type", string(rt)))
	defer func() { g.finish(span, "save_sample", err) }()

	if !g.Available() {
		return domain.ErrStoreUnavailable
	}
	if err := checkQuantity(rt, quantity); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSaveFailed, err)
	}

	sample := domain.Sample{
		ID:       uuid.NewString(),
		Type:     rt,
		Quantity: quantity,
		StartAt:  ts,
		EndAt:    ts,
		Source:   domain.SourceApp,
	}
	if err := g.store.SaveSample(ctx, g.owner, sample); err != nil {
		g.logger.Printf("error saving %s sample: %v", rt, err)
		return fmt.Errorf("%w: %s: %w", domain.ErrSaveFailed, rt, err)
	}
	g.logger.Printf("%s sample saved successfully", rt)
	return nil
}

// SaveWorkout persists the workout and then its distance and energy samples
// linked to it. A failed workout write skips the samples. A failed sample
// write is reported as a *domain.LinkedSampleError; the workout stays
// persisted and is returned.
func (g *Gateway) SaveWorkout(ctx context.Context, in domain.WorkoutInput) (workout domain.Workout, err error) {
	ctx, span := g.start(ctx, "SaveWorkout", attribute.String("activity", string(in.Activity)))
	defer func() { g.finish(span, "save_workout", err) }()

	if !g.Available() {
		return domain.Workout{}, domain.ErrStoreUnavailable
	}
	if err := in.Validate(); err != nil {
		return domain.Workout{}, err
	}

	workout = domain.Workout{
		ID:            uuid.NewString(),
		Activity:      in.Activity,
		StartAt:       in.StartAt,
		EndAt:         in.EndAt,
		TotalEnergy:   in.Energy,
		TotalDistance: in.Distance,
	}
	if err := g.store.SaveWorkout(ctx, g.owner, workout); err != nil {
		g.logger.Printf("error saving %s workout: %v", in.Activity, err)
		return domain.Workout{}, fmt.Errorf("%w: workout: %w", domain.ErrSaveFailed, err)
	}
	span.SetAttributes(attribute.String("workout.id", workout.ID))

	linked := []domain.Sample{
		{Type: domain.RecordDistanceWalkingRunning, Quantity: in.Distance},
		{Type: domain.RecordActiveEnergyBurned, Quantity: in.Energy},
	}
	var errs []error
	for _, s := range linked {
		s.ID = uuid.NewString()
		s.StartAt = in.StartAt
		s.EndAt = in.EndAt
		s.WorkoutID = workout.ID
		s.Source = domain.SourceApp
		if err := g.store.AddSamplesToWorkout(ctx, g.owner, workout.ID, []domain.Sample{s}); err != nil {
			g.logger.Printf("error linking %s sample to workout %s: %v", s.Type, workout.ID, err)
			errs = append(errs, &domain.LinkedSampleError{
				WorkoutID: workout.ID,
				Type:      s.Type,
				Err:       fmt.Errorf("%w: %w", domain.ErrSaveFailed, err),
			})
			continue
		}
		workout.LinkedSamples = append(workout.LinkedSamples, s)
	}
	return workout, errors.Join(errs...)
}

func checkQuantity(rt domain.RecordType, q domain.Quantity) error {
	canonical, ok := rt.CanonicalUnit()
	if !ok {
		return fmt.Errorf("%w: %s is not a quantity type", domain.ErrUnknownRecordType, rt)
	}
	if _, err := q.In(canonical); err != nil {
		return err
	}
	return q.Validate()
}

func (g *Gateway) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "gateway."+name, trace.WithAttributes(attrs...))
}

func (g *Gateway) finish(span trace.Span, operation string, err error) {
	defer span.End()
	switch {
	case err == nil:
		observability.RecordGatewayOperation(operation, observability.OutcomeOK)
	case errors.Is(err, domain.ErrStoreUnavailable):
		span.SetStatus(codes.Error, err.Error())
		observability.RecordGatewayOperation(operation, observability.OutcomeUnavailable)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordGatewayOperation(operation, observability.OutcomeError)
	}
}
