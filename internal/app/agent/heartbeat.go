package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
	"github.com/ahrav/dirigent/pkg/common/timeutil"
)

// defaultHeartbeatInterval is used when no interval is configured.
const defaultHeartbeatInterval = 10 * time.Second

// HeartbeatEmitter publishes periodic liveness beats for the agent while a
// job runs. The registry uses the beat stream to distinguish a slow job from
// a dead agent; the beats carry no job state. A missed beat is repaired by
// the next one, so publish failures are logged and never stop the emitter or
// the run.
type HeartbeatEmitter struct {
	meta  execution.AgentMetadata
	jobID string

	eventPublisher events.DomainEventPublisher
	interval       time.Duration
	timeProvider   timeutil.Provider

	// sequence numbers each beat. Start owns it exclusively; gaps on the
	// consumer side indicate publish failures.
	sequence uint64

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics AgentMetrics
}

// NewHeartbeatEmitter creates an emitter for the given agent and job. A
// non-positive interval falls back to the default.
func NewHeartbeatEmitter(
	meta execution.AgentMetadata,
	jobID string,
	eventPublisher events.DomainEventPublisher,
	interval time.Duration,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics AgentMetrics,
) *HeartbeatEmitter {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HeartbeatEmitter{
		meta:           meta,
		jobID:          jobID,
		eventPublisher: eventPublisher,
		interval:       interval,
		timeProvider:   timeutil.Default(),
		logger:         log.With("component", "heartbeat_emitter", "job_id", jobID),
		tracer:         tracer,
		metrics:        metrics,
	}
}

// Start sends an initial beat immediately, then continues at the configured
// interval until the context is cancelled. It must be called at most once and
// always returns the context's error.
func (h *HeartbeatEmitter) Start(ctx context.Context) error {
	h.logger.Info(ctx, "Starting heartbeat emitter",
		"agent_id", h.meta.AgentID.String(), "interval", h.interval.String())

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.sendHeartbeat(ctx)

	for {
		select {
		case <-ticker.C:
			h.sendHeartbeat(ctx)
		case <-ctx.Done():
			h.logger.Info(ctx, "Stopping heartbeat emitter", "beats_sent", h.sequence)
			return ctx.Err()
		}
	}
}

// sendHeartbeat publishes one beat. Failures count against the heartbeat
// error metric but are otherwise swallowed.
func (h *HeartbeatEmitter) sendHeartbeat(ctx context.Context) {
	h.sequence++

	ctx, span := h.tracer.Start(ctx, "heartbeat_emitter.send",
		trace.WithAttributes(
			attribute.String("agent_id", h.meta.AgentID.String()),
			attribute.String("job_id", h.jobID),
			attribute.Int64("sequence", int64(h.sequence)),
		))
	defer span.End()

	evt := execution.NewAgentHeartbeatEvent(h.meta.AgentID, h.jobID, h.meta.Hostname, h.sequence)

	err := h.eventPublisher.PublishDomainEvent(ctx, evt, events.WithKey(h.jobID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "heartbeat publish failed")
		if h.metrics != nil {
			h.metrics.IncHeartbeatError(ctx)
		}
		h.logger.Warn(ctx, "Failed to publish heartbeat", "sequence", h.sequence, "error", err)
		return
	}

	span.AddEvent("heartbeat_sent")
	if h.metrics != nil {
		h.metrics.IncHeartbeatSent(ctx)
	}
	h.logger.Debug(ctx, "Heartbeat sent", "sequence", h.sequence, "timestamp", h.timeProvider.Now())
}
