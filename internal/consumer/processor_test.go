package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/healthprofile/internal/events"
	"example.com/healthprofile/internal/outbox"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"sample_id":"abc"}`)
	value := outbox.EncodeWireFormat(42, payload)

	msg := kafka.Message{
		Topic:     "health_sample_events",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte(events.TypeSampleSaved)},
			{Key: outbox.HeaderTenantID, Value: []byte("tenant-1")},
			{Key: outbox.HeaderSchemaSubject, Value: []byte("health_sample_events-value")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeSampleSaved, handler.last.EventType)
	require.Equal(t, "tenant-1", handler.last.TenantID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"workout_id":"def"}`)
	value := outbox.EncodeWireFormat(99, payload)

	msg := kafka.Message{
		Topic:     "health_workout_events",
		Partition: 0,
		Offset:    20,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte(events.TypeWorkoutSaved)},
			{Key: outbox.HeaderTenantID, Value: []byte("tenant-2")},
			{Key: outbox.HeaderSchemaSubject, Value: []byte("health_workout_events-value")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: "health_sample_events", Value: []byte{0, 1}},
			{Topic: "health_sample_events", Value: outbox.EncodeWireFormat(1, []byte(`{}`))},
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)

	// Short frames and records without an event type are skipped but committed.
	require.Equal(t, 0, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
}

func TestValidatePayloadRejectsBadShapes(t *testing.T) {
	err := validatePayload(Message{EventType: events.TypeSampleSaved, Payload: []byte(`{"value":"heavy"}`)})
	require.Error(t, err)

	require.NoError(t, validatePayload(Message{EventType: events.TypeWorkoutSaved, Payload: []byte(`{"workout_id":"w"}`)}))
	require.NoError(t, validatePayload(Message{EventType: "other", Payload: []byte(`not json`)}))
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
