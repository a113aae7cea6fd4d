package outbox

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/healthprofile/internal/events"
)

func TestWireFormatRoundTrip(t *testing.T) {
	payload := []byte(`{"sample_id":"abc"}`)
	frame := EncodeWireFormat(42, payload)
	require.Len(t, frame, 5+len(payload))
	require.Equal(t, byte(0), frame[0])

	id, decoded, err := DecodeWireFormat(frame)
	require.NoError(t, err)
	require.Equal(t, 42, id)
	require.Equal(t, payload, decoded)
}

func TestDecodeWireFormatRejectsShortAndUnframed(t *testing.T) {
	_, _, err := DecodeWireFormat([]byte{0, 1})
	require.Error(t, err)

	_, _, err = DecodeWireFormat([]byte(`{"a":1}`))
	require.Error(t, err)
}

func TestHeaderValue(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: HeaderTenantID, Value: []byte("t-1")}}}
	v, ok := HeaderValue(msg, HeaderTenantID)
	require.True(t, ok)
	require.Equal(t, "t-1", v)

	_, ok = HeaderValue(msg, HeaderEventType)
	require.False(t, ok)
}

func TestSchemaCatalogCoversEvents(t *testing.T) {
	for _, eventType := range []string{events.TypeSampleSaved, events.TypeWorkoutSaved} {
		entry, ok := schemaCatalog[eventType]
		require.Truef(t, ok, "missing schema for %s", eventType)
		require.True(t, json.Valid([]byte(entry.Schema)), eventType)
	}
}
