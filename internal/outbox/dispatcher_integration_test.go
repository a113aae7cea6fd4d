//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/healthprofile/internal/events"
	"example.com/healthprofile/internal/testsupport/pgtest"
)

const sampleTopic = "health_sample_events"

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, tenantID, uuid.NewString(), events.TypeSampleSaved))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, WithBatchSize(5))

	beforeDelivered := testutil.ToFloat64(deliveredCounter.WithLabelValues(sampleTopic))
	beforeHistogram := histogramSampleCount(t)

	n, err := dispatcher.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Len(t, producer.writes, 1)
	require.Equal(t, sampleTopic, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)

	record := producer.writes[0].messages[0]
	schemaID, _, err := DecodeWireFormat(record.Value)
	require.NoError(t, err)
	require.Equal(t, 42, schemaID)
	eventType, ok := HeaderValue(record, HeaderEventType)
	require.True(t, ok)
	require.Equal(t, events.TypeSampleSaved, eventType)
	tenant, _ := HeaderValue(record, HeaderTenantID)
	require.Equal(t, tenantID, tenant)

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter.WithLabelValues(sampleTopic)), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	n, err = dispatcher.DrainOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, tenantID, uuid.NewString(), events.TypeSampleSaved))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, WithBatchSize(5))

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(sampleTopic))

	_, err := dispatcher.DrainOnce(ctx)
	require.NoError(t, err)

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(sampleTopic)), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE tenant_id = $1`, tenantID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	// Parked events are not retried.
	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherCachesSchemaIDsAcrossBatch(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, tenantID, uuid.NewString(), events.TypeSampleSaved))
	require.NotZero(t, seedOutbox(t, ctx, pool, tenantID, uuid.NewString(), events.TypeSampleSaved))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	dispatcher := NewDispatcher(pool, producer, registry, WithBatchSize(5))

	n, err := dispatcher.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0].messages, 2)
	require.Len(t, registry.calls, 1, "schema registry should be invoked once due to cache")
}

func TestDispatcherUnknownSchemaMovesEventsToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), "health.unknown")
	require.NotZero(t, eventID)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 99}
	dispatcher := NewDispatcher(pool, producer, registry, WithBatchSize(5))

	_, err := dispatcher.DrainOnce(ctx)
	require.NoError(t, err)

	require.Empty(t, producer.writes, "unknown schema should skip kafka writes")
	require.Empty(t, registry.calls, "schema registry should not be invoked when metadata missing")

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&reason))
	require.Contains(t, reason, "no schema metadata for event_type=health.unknown")
}

func TestDispatcherBatchDurationCoversDelivery(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), events.TypeSampleSaved))

	const delay = 200 * time.Millisecond
	producer := &stubProducer{delay: delay}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, WithBatchSize(5))

	beforeSum := histogramSampleSum(t)

	n, err := dispatcher.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.GreaterOrEqual(t, histogramSampleSum(t)-beforeSum, delay.Seconds())
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	delay  time.Duration
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	calls []string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, subject)
	return s.id, nil
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func histogramSampleSum(t *testing.T) float64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	return metric.GetHistogram().GetSampleSum()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tenantID, aggregateID, eventType string) int64 {
	t.Helper()

	payload, err := json.Marshal(events.SampleSaved{
		SampleID:   aggregateID,
		TenantID:   tenantID,
		UserID:     "user-1",
		RecordType: "body-mass-index",
		Value:      22.86,
		Unit:       "count",
		StartAt:    time.Now().UTC(),
		EndAt:      time.Now().UTC(),
		Source:     "app",
	})
	require.NoError(t, err)

	var eventID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         RETURNING event_id`,
		tenantID,
		"sample",
		aggregateID,
		eventType,
		sampleTopic,
		sampleTopic+"-value",
		tenantID+":user-1",
		payload,
	).Scan(&eventID))
	return eventID
}
