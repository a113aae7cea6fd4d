// Package events defines the payloads published when health records change.
package events

import "time"

const (
	// TypeSampleSaved is the event type for a persisted quantity sample.
	TypeSampleSaved = "health.sample_saved"
	// TypeWorkoutSaved is the event type for a persisted workout.
	TypeWorkoutSaved = "health.workout_saved"
)

// SampleSaved is emitted when a quantity sample is written to the store.
type SampleSaved struct {
	SampleID   string    `json:"sample_id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	RecordType string    `json:"record_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	WorkoutID  string    `json:"workout_id,omitempty"`
	Source     string    `json:"source"`
}

// WorkoutSaved is emitted when a workout is written to the store.
type WorkoutSaved struct {
	WorkoutID     string    `json:"workout_id"`
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id"`
	Activity      string    `json:"activity"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	DurationSec   float64   `json:"duration_sec"`
	EnergyKcal    float64   `json:"energy_kcal"`
	DistanceMeter float64   `json:"distance_m"`
}
