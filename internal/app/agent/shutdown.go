package agent

import (
	"context"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// ShutdownAction is the last phase of an orderly run. It exists so the
// lifecycle ends on an explicit edge into DONE rather than falling off the
// end of cleanup.
type ShutdownAction struct {
	jobID string

	logger *logger.Logger
}

var _ Action = (*ShutdownAction)(nil)

// NewShutdownAction builds the shutdown phase.
func NewShutdownAction(jobID string, log *logger.Logger) *ShutdownAction {
	return &ShutdownAction{
		jobID:  jobID,
		logger: log.With("component", "shutdown_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires the terminal outcome to still be recorded.
func (a *ShutdownAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if _, ok := ec.FinalStatus(); !ok {
		return &InvariantViolationError{State: StateShutdown, Detail: "no final status recorded"}
	}
	return nil
}

// Execute logs the end of the lifecycle.
func (a *ShutdownAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	a.logger.Info(ctx, "Agent shutting down")
	return EventShutdownComplete, nil
}

// ValidatePostconditions has nothing to check.
func (a *ShutdownAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	return nil
}
