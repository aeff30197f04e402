// Package memory provides an in-memory implementation of the event bus.
// It offers a lightweight, non-persistent broker suitable for testing and
// development environments where durability is not required.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ahrav/dirigent/internal/domain/events"
)

var _ events.EventBus = (*EventBus)(nil)

// EventBus is an in-process implementation of events.EventBus. Handlers run
// synchronously on the publishing goroutine, so tests can assert on delivery
// without sleeps or polling. There are no acknowledgment semantics; handlers
// receive a no-op ack.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]events.HandlerFunc
	closed   bool
}

// NewEventBus creates an in-memory event bus with no registered handlers.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[events.EventType][]events.HandlerFunc)}
}

// noopAck is handed to handlers since the in-memory bus tracks no delivery state.
func noopAck(error) {}

// Publish delivers the envelope to every handler subscribed to its type,
// stopping at the first error. Handlers are copied before iteration to avoid
// holding the lock while they execute.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var pParams events.PublishParams
	for _, opt := range opts {
		opt(&pParams)
	}
	if pParams.Key != "" {
		event.Key = pParams.Key
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("event bus is closed")
	}
	handlersCopy := make([]events.HandlerFunc, len(b.handlers[event.Type]))
	copy(handlersCopy, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, handler := range handlersCopy {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(ctx, event, noopAck); err != nil {
			return fmt.Errorf("handler for event %s: %w", event.Type, err)
		}
	}
	return nil
}

// Subscribe registers a handler for the given event types. The handler is
// removed when ctx is canceled. Multiple handlers can be registered and will
// all receive published events.
func (b *EventBus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("event bus is closed")
	}
	indexes := make(map[events.EventType]int, len(eventTypes))
	for _, et := range eventTypes {
		indexes[et] = len(b.handlers[et])
		b.handlers[et] = append(b.handlers[et], handler)
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		// Remove the handler at the stored index if it's still valid.
		for et, idx := range indexes {
			if idx < len(b.handlers[et]) {
				b.handlers[et] = append(b.handlers[et][:idx], b.handlers[et][idx+1:]...)
			}
		}
	}()

	return nil
}

// Close marks the bus closed. Subsequent publishes and subscriptions fail.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[events.EventType][]events.HandlerFunc)
	return nil
}
