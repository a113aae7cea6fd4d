package domain

import (
	"fmt"
	"strings"
	"time"
)

// Owner scopes every store call to one person's records.
type Owner struct {
	TenantID string
	UserID   string
}

func (o Owner) String() string {
	return o.TenantID + ":" + o.UserID
}

// SampleSource records who produced a sample.
type SampleSource string

const (
	// SourceApp marks samples written through the gateway.
	SourceApp SampleSource = "app"
	// SourceManual marks samples the owner entered directly into the store.
	SourceManual SampleSource = "manual"
)

// Sample is one timestamped quantity measurement.
type Sample struct {
	ID        string
	Type      RecordType
	Quantity  Quantity
	StartAt   time.Time
	EndAt     time.Time
	WorkoutID string
	Source    SampleSource
	CreatedAt time.Time
}

// Instantaneous reports whether start and end coincide.
func (s Sample) Instantaneous() bool {
	return s.StartAt.Equal(s.EndAt)
}

// ActivityKind is the type of a workout.
type ActivityKind string

const (
	ActivityRunning  ActivityKind = "running"
	ActivityWalking  ActivityKind = "walking"
	ActivityCycling  ActivityKind = "cycling"
	ActivitySwimming ActivityKind = "swimming"
	ActivityHiking   ActivityKind = "hiking"
	ActivityOther    ActivityKind = "other"
)

// ParseActivityKind resolves a kind, case-insensitively.
func ParseActivityKind(value string) (ActivityKind, error) {
	kind := ActivityKind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case ActivityRunning, ActivityWalking, ActivityCycling, ActivitySwimming, ActivityHiking, ActivityOther:
		return kind, nil
	}
	return "", fmt.Errorf("unknown activity kind %q", value)
}

// Workout is a timed activity with aggregate quantities. LinkedSamples are
// carried for display only; the workout does not own them.
type Workout struct {
	ID            string
	Activity      ActivityKind
	StartAt       time.Time
	EndAt         time.Time
	TotalEnergy   Quantity
	TotalDistance Quantity
	LinkedSamples []Sample
	CreatedAt     time.Time
}

// Duration is |end - start|.
func (w Workout) Duration() time.Duration {
	d := w.EndAt.Sub(w.StartAt)
	if d < 0 {
		return -d
	}
	return d
}

// WorkoutInput is what a caller supplies to record a workout.
type WorkoutInput struct {
	Activity ActivityKind
	StartAt  time.Time
	EndAt    time.Time
	Distance Quantity
	Energy   Quantity
}

// Validate checks units and timestamps before anything is written.
func (in WorkoutInput) Validate() error {
	if _, err := ParseActivityKind(string(in.Activity)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkout, err)
	}
	if in.StartAt.IsZero() || in.EndAt.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWorkout)
	}
	if in.Distance.Unit.Dimension() != DimensionLength {
		return fmt.Errorf("%w: distance unit %q is not a length", ErrInvalidWorkout, in.Distance.Unit)
	}
	if in.Energy.Unit.Dimension() != DimensionEnergy {
		return fmt.Errorf("%w: energy unit %q is not an energy", ErrInvalidWorkout, in.Energy.Unit)
	}
	if err := in.Distance.Validate(); err != nil {
		return fmt.Errorf("%w: distance: %w", ErrInvalidWorkout, err)
	}
	if err := in.Energy.Validate(); err != nil {
		return fmt.Errorf("%w: energy: %w", ErrInvalidWorkout, err)
	}
	return nil
}

// SortOrder orders query results by start time.
type SortOrder int

const (
	SortStartDescending SortOrder = iota
	SortStartAscending
)

// SampleQuery selects samples of one type whose start lies in [From, To].
// A zero From means the distant past; a zero To means now. Limit 0 means
// no limit.
type SampleQuery struct {
	Type  RecordType
	From  time.Time
	To    time.Time
	Order SortOrder
	Limit int
}

// Cursor is the keyset position after the last returned workout.
type Cursor struct {
	StartAt time.Time
	ID      string
}

// WorkoutQuery selects workouts of one activity kind, start descending.
type WorkoutQuery struct {
	Activity ActivityKind
	Cursor   *Cursor
	Limit    int
}
