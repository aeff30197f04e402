package events

import "time"

// DomainEvent is implemented by domain types that announce "something
// happened" in the system (a status change, a heartbeat, a kill request).
// Implementations carry their own payload fields; the event system never
// inspects them beyond this contract.
type DomainEvent interface {
	// EventType identifies the category of this event for routing and handling.
	EventType() EventType

	// OccurredAt records when the event happened in the domain, enabling
	// temporal tracking and debugging of event flows.
	OccurredAt() time.Time
}

// EventEnvelope encapsulates all event data flowing through the event bus,
// providing a standardized format for event processing and distribution.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier like a job id that events can be partitioned by.
	Key string

	// Timestamp records when this envelope was created.
	Timestamp time.Time

	// Metadata carries transport-level position information for consumed
	// events. It is zero for locally constructed envelopes.
	Metadata EventMetadata

	// Payload contains the actual event data. The concrete type depends on
	// the EventType.
	Payload any
}

// EventMetadata describes where a consumed event sat in the underlying
// stream. Useful for diagnostics when a handler rejects an event.
type EventMetadata struct {
	Partition int32
	Offset    int64
}
