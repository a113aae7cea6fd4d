package outbox

import "example.com/healthprofile/internal/events"

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeSampleSaved: {
		Schema: sampleSavedSchema,
	},
	events.TypeWorkoutSaved: {
		Schema: workoutSavedSchema,
	},
}

const sampleSavedSchema = `{
  "type": "object",
  "title": "SampleSaved",
  "properties": {
    "sample_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "record_type": {"type": "string"},
    "value": {"type": "number"},
    "unit": {"type": "string"},
    "start_at": {"type": "string", "format": "date-time"},
    "end_at": {"type": "string", "format": "date-time"},
    "workout_id": {"type": "string"},
    "source": {"type": "string", "enum": ["app", "manual"]}
  },
  "required": ["sample_id", "tenant_id", "user_id", "record_type", "value", "unit", "start_at", "end_at", "source"],
  "additionalProperties": false
}`

const workoutSavedSchema = `{
  "type": "object",
  "title": "WorkoutSaved",
  "properties": {
    "workout_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity": {"type": "string"},
    "start_at": {"type": "string", "format": "date-time"},
    "end_at": {"type": "string", "format": "date-time"},
    "duration_sec": {"type": "number"},
    "energy_kcal": {"type": "number"},
    "distance_m": {"type": "number"}
  },
  "required": ["workout_id", "tenant_id", "user_id", "activity", "start_at", "end_at", "duration_sec", "energy_kcal", "distance_m"],
  "additionalProperties": false
}`
