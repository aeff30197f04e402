// Package serialization provides a registry-based system for serializing and
// deserializing domain events in the event bus infrastructure. It acts as a
// translation layer between domain objects and their JSON wire format.
//
// The package implements a registry pattern where serialization and
// deserialization functions are registered for each event type. This approach:
//   - Maintains a clean separation between domain models and their wire formats
//   - Centralizes all serialization logic in one place
//   - Enables easy addition of new event types without modifying existing code
//
// This package enables reliable event-driven communication between the agent
// and downstream consumers while keeping the domain layer clean of
// serialization concerns.
package serialization

import (
	"fmt"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
)

// SerializeFunc converts a domain object into a serialized byte slice.
type SerializeFunc func(payload any) ([]byte, error)

// DeserializeFunc converts a serialized byte slice back into a domain object.
type DeserializeFunc func(data []byte) (any, error)

// Global registries map event types to their serialization functions.
// This allows for dynamic dispatch based on event type at runtime.
var (
	serializerRegistry   = map[events.EventType]SerializeFunc{}
	deserializerRegistry = map[events.EventType]DeserializeFunc{}
)

// RegisterSerializeFunc registers a serialization function for a given event type.
// This enables the system to properly encode domain objects when publishing events.
func RegisterSerializeFunc(eventType events.EventType, fn SerializeFunc) {
	serializerRegistry[eventType] = fn
}

// RegisterDeserializeFunc registers a deserialization function for a given event type.
// This enables the system to properly decode events back into domain objects when consuming them.
func RegisterDeserializeFunc(eventType events.EventType, fn DeserializeFunc) {
	deserializerRegistry[eventType] = fn
}

// SerializePayload converts a domain object into bytes using the registered serializer for its event type.
// Returns an error if no serializer is registered for the given event type.
func SerializePayload(eventType events.EventType, payload any) ([]byte, error) {
	fn, ok := serializerRegistry[eventType]
	if !ok {
		return nil, fmt.Errorf("no serializer registered for eventType=%s", eventType)
	}
	return fn(payload)
}

// DeserializePayload converts bytes back into a domain object using the registered deserializer for its event type.
// Returns an error if no deserializer is registered for the given event type.
func DeserializePayload(eventType events.EventType, data []byte) (any, error) {
	fn, ok := deserializerRegistry[eventType]
	if !ok {
		return nil, fmt.Errorf("no deserializer registered for eventType=%s", eventType)
	}
	return fn(data)
}

func init() { RegisterEventSerializers() }

// RegisterEventSerializers initializes the serialization system by registering
// handlers for all supported event types.
func RegisterEventSerializers() {
	RegisterSerializeFunc(execution.EventTypeJobStatusChanged, serializeJobStatusChanged)
	RegisterDeserializeFunc(execution.EventTypeJobStatusChanged, deserializeJobStatusChanged)

	RegisterSerializeFunc(execution.EventTypeAgentHeartbeat, serializeAgentHeartbeat)
	RegisterDeserializeFunc(execution.EventTypeAgentHeartbeat, deserializeAgentHeartbeat)

	RegisterSerializeFunc(execution.EventTypeJobKillRequested, serializeJobKillRequested)
	RegisterDeserializeFunc(execution.EventTypeJobKillRequested, deserializeJobKillRequested)
}
