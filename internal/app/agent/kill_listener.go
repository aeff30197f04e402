package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// KillListener reacts to kill requests arriving over the event bus and
// delivers them to the process supervisor. It is the remote half of the kill
// path; OS signals are the local half, and both converge on supervisor.Kill
// so a kill from either origin resolves the run to KILLED through the normal
// monitoring phase.
type KillListener struct {
	jobID      string
	supervisor execution.ProcessSupervisor

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics AgentMetrics
}

// NewKillListener creates a listener for kill requests targeting jobID.
func NewKillListener(
	jobID string,
	supervisor execution.ProcessSupervisor,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics AgentMetrics,
) *KillListener {
	return &KillListener{
		jobID:      jobID,
		supervisor: supervisor,
		logger:     log.With("component", "kill_listener", "job_id", jobID),
		tracer:     tracer,
		metrics:    metrics,
	}
}

// HandleKillRequested processes one kill request envelope. Requests for other
// jobs are acknowledged and ignored; the kill topic may carry requests for
// every job in flight.
func (l *KillListener) HandleKillRequested(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	ctx, span := l.tracer.Start(ctx, "kill_listener.handle_kill_requested",
		trace.WithAttributes(attribute.String("job_id", l.jobID)))
	defer span.End()

	req, ok := evt.Payload.(execution.JobKillRequestedEvent)
	if !ok {
		err := fmt.Errorf("expected JobKillRequestedEvent payload, got %T", evt.Payload)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		ack(err)
		return err
	}

	if req.JobID != l.jobID {
		l.logger.Debug(ctx, "Ignoring kill request for different job", "target_job_id", req.JobID)
		span.AddEvent("kill_request_ignored")
		ack(nil)
		return nil
	}

	if l.metrics != nil {
		l.metrics.IncKillRequestReceived(ctx)
	}
	l.logger.Warn(ctx, "Kill requested for job", "reason", req.Reason)

	l.supervisor.Kill()

	span.AddEvent("kill_signal_delivered")
	span.SetStatus(codes.Ok, "kill delivered")
	ack(nil)
	return nil
}
