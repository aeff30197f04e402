package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
)

func statusEnvelope(jobID string) events.EventEnvelope {
	evt := execution.NewJobStatusChangedEvent(
		jobID,
		execution.JobStatusRunning,
		execution.JobStatusSucceeded,
		execution.StatusMessageSucceeded,
	)
	return events.EventEnvelope{
		Type:      evt.EventType(),
		Key:       jobID,
		Timestamp: evt.OccurredAt(),
		Payload:   evt,
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)

	expected := statusEnvelope("job-1")

	err := bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobStatusChanged},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			defer wg.Done()
			assert.Equal(t, expected.Type, evt.Type)
			assert.Equal(t, expected.Payload, evt.Payload)
			ack(nil)
			return nil
		})
	assert.NoError(t, err)

	err = bus.Publish(ctx, expected)
	assert.NoError(t, err)

	wg.Wait()
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ctx := context.Background()

	var delivered int
	err := bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobKillRequested},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			delivered++
			return nil
		})
	assert.NoError(t, err)

	err = bus.Publish(ctx, statusEnvelope("job-1"))
	assert.NoError(t, err)
	assert.Zero(t, delivered, "handler for a different event type should not run")
}

func TestMultipleSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ctx := context.Background()
	var wg sync.WaitGroup
	subscriberCount := 3
	wg.Add(subscriberCount)

	for i := 0; i < subscriberCount; i++ {
		err := bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobStatusChanged},
			func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
				defer wg.Done()
				return nil
			})
		assert.NoError(t, err)
	}

	err := bus.Publish(ctx, statusEnvelope("job-multi"))
	assert.NoError(t, err)

	wg.Wait()
}

func TestHandlerError(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ctx := context.Background()
	expectedErr := errors.New("handler error")

	// Subscribe with an error-returning handler.
	err := bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobStatusChanged},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			return expectedErr
		})
	assert.NoError(t, err)

	err = bus.Publish(ctx, statusEnvelope("job-err"))
	assert.ErrorIs(t, err, expectedErr)
}

func TestPublishAppliesKeyOption(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ctx := context.Background()

	var receivedKey string
	err := bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobStatusChanged},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			receivedKey = evt.Key
			return nil
		})
	assert.NoError(t, err)

	env := statusEnvelope("job-1")
	env.Key = ""
	err = bus.Publish(ctx, env, events.WithKey("routing-key"))
	assert.NoError(t, err)
	assert.Equal(t, "routing-key", receivedKey)
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ctx := context.Background()
	var wg sync.WaitGroup
	eventCount := 100
	subscriberCount := 5
	wg.Add(eventCount * subscriberCount)

	for i := 0; i < subscriberCount; i++ {
		err := bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobStatusChanged},
			func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
				defer wg.Done()
				return nil
			})
		assert.NoError(t, err)
	}

	for i := 0; i < eventCount; i++ {
		go func(id int) {
			err := bus.Publish(ctx, statusEnvelope(fmt.Sprintf("job-%d", id)))
			assert.NoError(t, err)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success.
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handlers")
	}
}

func TestContextCancellation(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel context before publishing.
	cancel()

	err := bus.Publish(ctx, statusEnvelope("job-1"))
	assert.ErrorIs(t, err, context.Canceled)

	err = bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobStatusChanged},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			return nil
		})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	ctx := context.Background()

	err := bus.Subscribe(ctx, []events.EventType{execution.EventTypeJobStatusChanged},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			t.Fatal("handler should not run after close")
			return nil
		})
	assert.NoError(t, err)

	assert.NoError(t, bus.Close())

	err = bus.Publish(ctx, statusEnvelope("job-1"))
	assert.Error(t, err)
}
