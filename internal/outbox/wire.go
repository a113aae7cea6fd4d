package outbox

import (
	"encoding/binary"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Header keys set on every published record.
const (
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderSchemaSubject = "schema_subject"
)

const (
	wireMagicByte  = 0
	wireHeaderSize = 5
)

// EncodeWireFormat applies Confluent framing: a zero magic byte, the
// big-endian schema ID, then the payload.
func EncodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, wireHeaderSize+len(payload))
	frame[0] = wireMagicByte
	binary.BigEndian.PutUint32(frame[1:wireHeaderSize], uint32(schemaID))
	copy(frame[wireHeaderSize:], payload)
	return frame
}

// DecodeWireFormat splits a framed value into schema ID and a copy of the payload.
func DecodeWireFormat(value []byte) (int, []byte, error) {
	if len(value) < wireHeaderSize {
		return 0, nil, fmt.Errorf("invalid payload length: %d", len(value))
	}
	if value[0] != wireMagicByte {
		return 0, nil, fmt.Errorf("unexpected magic byte %d", value[0])
	}
	schemaID := int(binary.BigEndian.Uint32(value[1:wireHeaderSize]))
	return schemaID, append([]byte(nil), value[wireHeaderSize:]...), nil
}

// HeaderValue returns the first header named key.
func HeaderValue(msg kafka.Message, key string) (string, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value), true
		}
	}
	return "", false
}
