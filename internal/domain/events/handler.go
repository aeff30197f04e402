package events

import "context"

// AckFunc acknowledges processing of an event back to the transport. A nil
// argument marks success; a non-nil error lets transports that track
// delivery record the failure. Transports without acknowledgment semantics
// supply a no-op.
type AckFunc func(error)

// HandlerFunc processes a single event envelope. The handler must call ack
// exactly once when the transport provides acknowledgment semantics.
type HandlerFunc func(ctx context.Context, evt EventEnvelope, ack AckFunc) error

// EventHandler defines the contract for components that process domain
// events. Each handler declares which event types it can process and
// implements the logic to handle those events. The event dispatcher routes
// events to the appropriate handlers based on the event type.
type EventHandler interface {
	// HandleEvent processes a domain event and returns an error if processing
	// fails.
	HandleEvent(ctx context.Context, evt EventEnvelope, ack AckFunc) error

	// SupportedEvents returns the event types this handler can process.
	SupportedEvents() []EventType
}
