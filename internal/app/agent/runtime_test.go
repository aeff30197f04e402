package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
	eventdispatcher "github.com/ahrav/dirigent/internal/infra/event_dispatcher"
	"github.com/ahrav/dirigent/internal/infra/eventbus/kafka"
	"github.com/ahrav/dirigent/internal/infra/eventbus/memory"
	"github.com/ahrav/dirigent/internal/infra/process"
	registrymemory "github.com/ahrav/dirigent/internal/infra/registry/memory"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

type runtimeHarness struct {
	runtime    *Runtime
	registry   *registrymemory.Registry
	supervisor *process.Supervisor
	bus        *memory.EventBus
}

// newRuntimeHarness wires a complete single-job runtime over in-memory
// infrastructure: memory registry, memory event bus, and a real process
// supervisor.
func newRuntimeHarness(t *testing.T, jobID string, spec execution.JobSpecification) *runtimeHarness {
	t.Helper()

	log := logger.Noop()
	tracer := noop.NewTracerProvider().Tracer("")

	reg := registrymemory.NewRegistry()
	reg.SeedJob(spec)

	bus := memory.NewEventBus()
	publisher := kafka.NewDomainEventPublisher(bus, events.NewDomainEventTranslator())

	sup := process.NewSupervisor(log, tracer)

	meta, err := execution.NewAgentMetadata("test")
	require.NoError(t, err)

	ec := execution.NewExecutionContext()
	reporter := NewStatusReporter(reg, publisher, log)
	actions := NewLifecycleActions(reporter, sup, jobID, meta, t.TempDir(), log)
	driver := NewDriver(actions, ec, reporter, jobID, log, tracer, nil)

	heartbeat := NewHeartbeatEmitter(meta, jobID, publisher, 20*time.Millisecond, log, tracer, nil)
	dispatcher := eventdispatcher.New(tracer, log)
	killer := NewKillListener(jobID, sup, log, tracer, nil)

	rt := NewRuntime(driver, heartbeat, dispatcher, bus, sup, killer, log, tracer)
	return &runtimeHarness{runtime: rt, registry: reg, supervisor: sup, bus: bus}
}

func TestRuntimeRunsJobToCompletion(t *testing.T) {
	const jobID = "job-runtime-ok"
	h := newRuntimeHarness(t, jobID, shellSpec(jobID, "exit 0"))

	// Observe the status change stream the run produces.
	var terminalSeen atomic.Bool
	var statusCount atomic.Int32
	err := h.bus.Subscribe(context.Background(),
		[]events.EventType{execution.EventTypeJobStatusChanged},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			statusCount.Add(1)
			if sc, ok := evt.Payload.(execution.JobStatusChangedEvent); ok && sc.IsTerminal() {
				terminalSeen.Store(true)
			}
			ack(nil)
			return nil
		})
	require.NoError(t, err)

	final, err := h.runtime.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, execution.JobStatusSucceeded, final)

	status, message, ok := h.registry.JobState(jobID)
	require.True(t, ok)
	assert.Equal(t, execution.JobStatusSucceeded, status)
	assert.Equal(t, "job finished successfully", message)

	// CLAIMED->INIT through RUNNING->SUCCEEDED: six announced transitions.
	assert.Equal(t, int32(6), statusCount.Load())
	assert.True(t, terminalSeen.Load(), "terminal status change must be announced")
}

func TestRuntimeKillRequestViaEventBus(t *testing.T) {
	const jobID = "job-runtime-killed"
	h := newRuntimeHarness(t, jobID, shellSpec(jobID, "sleep 30"))

	type runResult struct {
		status execution.JobStatus
		err    error
	}
	resCh := make(chan runResult, 1)
	go func() {
		status, err := h.runtime.Run(context.Background())
		resCh <- runResult{status, err}
	}()

	require.Eventually(t, func() bool {
		status, _, ok := h.registry.JobState(jobID)
		return ok && status == execution.JobStatusRunning
	}, 5*time.Second, 10*time.Millisecond, "job never reached RUNNING")

	// A kill for some other job must leave this run alone.
	require.NoError(t, h.bus.Publish(context.Background(), events.EventEnvelope{
		Type:    execution.EventTypeJobKillRequested,
		Key:     "job-other",
		Payload: execution.NewJobKillRequestedEvent("job-other", "user request"),
	}))
	status, _, ok := h.registry.JobState(jobID)
	require.True(t, ok)
	require.Equal(t, execution.JobStatusRunning, status)

	require.NoError(t, h.bus.Publish(context.Background(), events.EventEnvelope{
		Type:    execution.EventTypeJobKillRequested,
		Key:     jobID,
		Payload: execution.NewJobKillRequestedEvent(jobID, "user request"),
	}))

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, execution.JobStatusKilled, res.status)
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not finish after kill request")
	}

	status, message, ok := h.registry.JobState(jobID)
	require.True(t, ok)
	assert.Equal(t, execution.JobStatusKilled, status)
	assert.Equal(t, "job killed by user", message)
}

func TestRuntimeEmitsHeartbeatsDuringRun(t *testing.T) {
	const jobID = "job-runtime-beats"
	h := newRuntimeHarness(t, jobID, shellSpec(jobID, "sleep 1"))

	var beats atomic.Int32
	err := h.bus.Subscribe(context.Background(),
		[]events.EventType{execution.EventTypeAgentHeartbeat},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			hb, ok := evt.Payload.(execution.AgentHeartbeatEvent)
			if ok && hb.JobID == jobID {
				beats.Add(1)
			}
			ack(nil)
			return nil
		})
	require.NoError(t, err)

	final, err := h.runtime.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, execution.JobStatusSucceeded, final)

	// The job slept for a second while beats fired every 20ms.
	assert.GreaterOrEqual(t, beats.Load(), int32(2), "expected heartbeats during the run")
}
