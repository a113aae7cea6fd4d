package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthprofile/internal/events"
)

// PersistenceHandler appends consumed events to the health_event_log table.
// Redelivered records are ignored.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle validates known payloads and stores the event.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	if err := validatePayload(msg); err != nil {
		return err
	}

	_, err := h.pool.Exec(ctx,
		`INSERT INTO health_event_log (event_type, tenant_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.TenantID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

func validatePayload(msg Message) error {
	var target any
	switch msg.EventType {
	case events.TypeSampleSaved:
		target = &events.SampleSaved{}
	case events.TypeWorkoutSaved:
		target = &events.WorkoutSaved{}
	default:
		return nil
	}
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	return nil
}
