package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/ahrav/dirigent/internal/domain/events"
)

// UniversalEnvelope is the outer wire frame wrapped around every event: the
// event type discriminator plus the serialized payload. Consumers read the
// type first, then dispatch to the payload deserializer registered for it.
type UniversalEnvelope struct {
	EventType string `json:"event_type"`
	Payload   []byte `json:"payload"`
}

// SerializeEventEnvelope serializes a domain payload and wraps it in the
// universal envelope ready for the wire.
func SerializeEventEnvelope(eventType events.EventType, payload any) ([]byte, error) {
	payloadBytes, err := SerializePayload(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("serialize payload for envelope: %w", err)
	}

	data, err := json.Marshal(UniversalEnvelope{
		EventType: string(eventType),
		Payload:   payloadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal universal envelope: %w", err)
	}
	return data, nil
}

// UnmarshalUniversalEnvelope splits wire bytes into the event type and the
// still-serialized payload bytes.
func UnmarshalUniversalEnvelope(data []byte) (events.EventType, []byte, error) {
	var env UniversalEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal universal envelope: %w", err)
	}
	if env.EventType == "" {
		return "", nil, fmt.Errorf("universal envelope missing event type")
	}
	return events.EventType(env.EventType), env.Payload, nil
}
