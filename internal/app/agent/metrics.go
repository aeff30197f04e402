package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/internal/infra/eventbus/kafka"
)

// AgentMetrics defines metrics operations needed by the agent.
type AgentMetrics interface {
	// Messaging metrics
	kafka.EventBusMetrics

	// Lifecycle metrics
	IncStateTransition(ctx context.Context, from State, event Event, to State)
	ObservePhaseDuration(ctx context.Context, state State, duration time.Duration)
	IncInvariantViolation(ctx context.Context, state State)

	// Outcome metrics
	IncJobFinalStatus(ctx context.Context, status execution.JobStatus)
	IncAgentError(ctx context.Context)

	// Heartbeat metrics
	IncHeartbeatSent(ctx context.Context)
	IncHeartbeatError(ctx context.Context)

	// Kill metrics
	IncKillRequestReceived(ctx context.Context)
}

// agentMetrics implements AgentMetrics
type agentMetrics struct {
	// Messaging metrics
	messagesPublished metric.Int64Counter
	messagesConsumed  metric.Int64Counter
	publishErrors     metric.Int64Counter
	consumeErrors     metric.Int64Counter

	// Lifecycle metrics
	stateTransitions    metric.Int64Counter
	phaseDuration       metric.Float64Histogram
	invariantViolations metric.Int64Counter

	// Outcome metrics
	jobFinalStatuses metric.Int64Counter
	agentErrors      metric.Int64Counter

	// Heartbeat metrics
	heartbeatsSent  metric.Int64Counter
	heartbeatErrors metric.Int64Counter

	// Kill metrics
	killRequests metric.Int64Counter
}

const namespace = "agent"

// NewAgentMetrics creates a new agent metrics instance.
func NewAgentMetrics(mp metric.MeterProvider) (*agentMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	a := new(agentMetrics)
	var err error

	// Initialize messaging metrics
	if a.messagesPublished, err = meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of messages published"),
	); err != nil {
		return nil, err
	}

	if a.messagesConsumed, err = meter.Int64Counter(
		"messages_consumed_total",
		metric.WithDescription("Total number of messages consumed"),
	); err != nil {
		return nil, err
	}

	if a.publishErrors, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of publish errors"),
	); err != nil {
		return nil, err
	}

	if a.consumeErrors, err = meter.Int64Counter(
		"consume_errors_total",
		metric.WithDescription("Total number of consume errors"),
	); err != nil {
		return nil, err
	}

	// Initialize lifecycle metrics
	if a.stateTransitions, err = meter.Int64Counter(
		"state_transitions_total",
		metric.WithDescription("Total number of lifecycle state transitions taken"),
	); err != nil {
		return nil, err
	}

	if a.phaseDuration, err = meter.Float64Histogram(
		"phase_duration_seconds",
		metric.WithDescription("Time spent in each lifecycle phase"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if a.invariantViolations, err = meter.Int64Counter(
		"invariant_violations_total",
		metric.WithDescription("Total number of lifecycle invariant violations"),
	); err != nil {
		return nil, err
	}

	// Initialize outcome metrics
	if a.jobFinalStatuses, err = meter.Int64Counter(
		"job_final_status_total",
		metric.WithDescription("Total number of runs by final job status"),
	); err != nil {
		return nil, err
	}

	if a.agentErrors, err = meter.Int64Counter(
		"agent_errors_total",
		metric.WithDescription("Total number of runs ending in the error state"),
	); err != nil {
		return nil, err
	}

	// Initialize heartbeat metrics
	if a.heartbeatsSent, err = meter.Int64Counter(
		"heartbeats_sent_total",
		metric.WithDescription("Total number of heartbeats published"),
	); err != nil {
		return nil, err
	}

	if a.heartbeatErrors, err = meter.Int64Counter(
		"heartbeat_errors_total",
		metric.WithDescription("Total number of heartbeat publish failures"),
	); err != nil {
		return nil, err
	}

	// Initialize kill metrics
	if a.killRequests, err = meter.Int64Counter(
		"kill_requests_received_total",
		metric.WithDescription("Total number of kill requests received for this job"),
	); err != nil {
		return nil, err
	}

	return a, nil
}

const stateKey = "state"

// Lifecycle metrics implementations
func (m *agentMetrics) IncStateTransition(ctx context.Context, from State, event Event, to State) {
	m.stateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_state", from.String()),
		attribute.String("event", event.String()),
		attribute.String("to_state", to.String()),
	))
}

func (m *agentMetrics) ObservePhaseDuration(ctx context.Context, state State, duration time.Duration) {
	m.phaseDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(stateKey, state.String()),
	))
}

func (m *agentMetrics) IncInvariantViolation(ctx context.Context, state State) {
	m.invariantViolations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(stateKey, state.String()),
	))
}

// Outcome metrics implementations
func (m *agentMetrics) IncJobFinalStatus(ctx context.Context, status execution.JobStatus) {
	m.jobFinalStatuses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status.String()),
	))
}

func (m *agentMetrics) IncAgentError(ctx context.Context) {
	m.agentErrors.Add(ctx, 1)
}

// Heartbeat metrics implementations
func (m *agentMetrics) IncHeartbeatSent(ctx context.Context) {
	m.heartbeatsSent.Add(ctx, 1)
}

func (m *agentMetrics) IncHeartbeatError(ctx context.Context) {
	m.heartbeatErrors.Add(ctx, 1)
}

// Kill metrics implementations
func (m *agentMetrics) IncKillRequestReceived(ctx context.Context) {
	m.killRequests.Add(ctx, 1)
}

// Kafka EventBusMetrics implementations
func (m *agentMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.messagesPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *agentMetrics) IncMessageConsumed(ctx context.Context, topic string) {
	m.messagesConsumed.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *agentMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *agentMetrics) IncConsumeError(ctx context.Context, topic string) {
	m.consumeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}
