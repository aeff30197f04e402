package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// mockSupervisor counts kill deliveries.
type mockSupervisor struct {
	mu     sync.Mutex
	killed int

	waitFunc func(ctx context.Context) (execution.JobStatus, error)
}

func (m *mockSupervisor) Launch(ctx context.Context, spec execution.LaunchSpec) error { return nil }

func (m *mockSupervisor) Wait(ctx context.Context) (execution.JobStatus, error) {
	if m.waitFunc != nil {
		return m.waitFunc(ctx)
	}
	return execution.JobStatusSucceeded, nil
}

func (m *mockSupervisor) Kill() {
	m.mu.Lock()
	m.killed++
	m.mu.Unlock()
}

func (m *mockSupervisor) killCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.killed
}

type ackRecorder struct {
	called bool
	err    error
}

func (a *ackRecorder) ack(err error) {
	a.called = true
	a.err = err
}

func newTestKillListener(sup execution.ProcessSupervisor) *KillListener {
	return NewKillListener("job-kill-me", sup,
		logger.Noop(), noop.NewTracerProvider().Tracer(""), nil)
}

func killEnvelope(jobID, reason string) events.EventEnvelope {
	return events.EventEnvelope{
		Type:    execution.EventTypeJobKillRequested,
		Key:     jobID,
		Payload: execution.NewJobKillRequestedEvent(jobID, reason),
	}
}

func TestKillListenerDeliversKillForOwnJob(t *testing.T) {
	sup := &mockSupervisor{}
	listener := newTestKillListener(sup)
	rec := &ackRecorder{}

	err := listener.HandleKillRequested(context.Background(), killEnvelope("job-kill-me", "user request"), rec.ack)
	require.NoError(t, err)

	assert.Equal(t, 1, sup.killCount())
	assert.True(t, rec.called)
	assert.NoError(t, rec.err)
}

func TestKillListenerIgnoresOtherJobs(t *testing.T) {
	sup := &mockSupervisor{}
	listener := newTestKillListener(sup)
	rec := &ackRecorder{}

	err := listener.HandleKillRequested(context.Background(), killEnvelope("job-someone-else", "user request"), rec.ack)
	require.NoError(t, err)

	assert.Zero(t, sup.killCount(), "kill for another job must not touch this supervisor")
	assert.True(t, rec.called, "foreign requests still need acknowledging")
	assert.NoError(t, rec.err)
}

func TestKillListenerRejectsWrongPayloadType(t *testing.T) {
	sup := &mockSupervisor{}
	listener := newTestKillListener(sup)
	rec := &ackRecorder{}

	envelope := events.EventEnvelope{
		Type:    execution.EventTypeJobKillRequested,
		Payload: "not a kill request",
	}

	err := listener.HandleKillRequested(context.Background(), envelope, rec.ack)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JobKillRequestedEvent")

	assert.Zero(t, sup.killCount())
	assert.True(t, rec.called)
	assert.Error(t, rec.err)
}

func TestKillListenerIsIdempotentAcrossRequests(t *testing.T) {
	sup := &mockSupervisor{}
	listener := newTestKillListener(sup)

	for i := 0; i < 3; i++ {
		rec := &ackRecorder{}
		err := listener.HandleKillRequested(context.Background(), killEnvelope("job-kill-me", "user request"), rec.ack)
		require.NoError(t, err)
		require.True(t, rec.called)
	}

	// Each delivery reaches the supervisor; idempotency lives there.
	assert.Equal(t, 3, sup.killCount())
}
