package agent

import (
	"context"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/internal/infra/eventbus/reliability"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// StatusReporter decorates a RegistryClient so every successful status change
// is also announced on the event bus. The registry write is the source of
// truth; the event is a notification for observers (UIs, notification
// services) and its delivery is best effort. A publish failure never fails
// the status change that already happened.
type StatusReporter struct {
	delegate  execution.RegistryClient
	publisher events.DomainEventPublisher

	logger *logger.Logger
}

var _ execution.RegistryClient = (*StatusReporter)(nil)

// NewStatusReporter wraps delegate with status change publication.
func NewStatusReporter(
	delegate execution.RegistryClient,
	publisher events.DomainEventPublisher,
	log *logger.Logger,
) *StatusReporter {
	return &StatusReporter{
		delegate:  delegate,
		publisher: publisher,
		logger:    log.With("component", "status_reporter"),
	}
}

// ClaimJob delegates to the underlying client. The claim itself is not
// announced; the first published transition is the CLAIMED to INIT move.
func (r *StatusReporter) ClaimJob(ctx context.Context, jobID string, meta execution.AgentMetadata) (*execution.JobSpecification, error) {
	return r.delegate.ClaimJob(ctx, jobID, meta)
}

// ChangeJobStatus applies the status change and, when it succeeds, publishes
// the corresponding JobStatusChangedEvent keyed by job ID so all events for
// one job stay ordered on the bus.
func (r *StatusReporter) ChangeJobStatus(ctx context.Context, jobID string, expected, next execution.JobStatus, message string) error {
	if err := r.delegate.ChangeJobStatus(ctx, jobID, expected, next, message); err != nil {
		return err
	}

	evt := execution.NewJobStatusChangedEvent(jobID, expected, next, message)
	if err := r.publisher.PublishDomainEvent(ctx, evt, events.WithKey(jobID)); err != nil {
		// A lost terminal announcement means downstream observers may never
		// learn the outcome; that deserves more noise than a missed
		// intermediate step.
		if evt.IsTerminal() && reliability.IsCriticalEvent(evt.EventType()) {
			r.logger.Error(ctx, "Failed to publish terminal status change",
				"job_id", jobID, "from", expected.String(), "to", next.String(), "error", err)
		} else {
			r.logger.Warn(ctx, "Failed to publish status change",
				"job_id", jobID, "from", expected.String(), "to", next.String(), "error", err)
		}
		return nil
	}

	r.logger.Debug(ctx, "Status change published",
		"job_id", jobID, "from", expected.String(), "to", next.String())
	return nil
}

// GetJobSpecification delegates to the underlying client.
func (r *StatusReporter) GetJobSpecification(ctx context.Context, jobID string) (*execution.JobSpecification, error) {
	return r.delegate.GetJobSpecification(ctx, jobID)
}
