package agent

import (
	"context"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// exitCoder is implemented by supervisors that can report the raw exit code
// of the completed process.
type exitCoder interface{ ExitCode() int }

// CleanupJobAction closes out the run after the process has reached its
// terminal status. The job directory and its logs are deliberately left in
// place; they are the run's artifact, not scratch space.
type CleanupJobAction struct {
	supervisor execution.ProcessSupervisor
	jobID      string

	logger *logger.Logger
}

var _ Action = (*CleanupJobAction)(nil)

// NewCleanupJobAction builds the cleanup phase.
func NewCleanupJobAction(
	supervisor execution.ProcessSupervisor,
	jobID string,
	log *logger.Logger,
) *CleanupJobAction {
	return &CleanupJobAction{
		supervisor: supervisor,
		jobID:      jobID,
		logger:     log.With("component", "cleanup_job_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires a recorded terminal outcome.
func (a *CleanupJobAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if _, ok := ec.FinalStatus(); !ok {
		return &InvariantViolationError{State: StateCleanupJob, Detail: "no final status recorded"}
	}
	if cur := ec.CurrentStatus(); !cur.IsTerminal() {
		return &InvariantViolationError{
			State:  StateCleanupJob,
			Detail: "current status " + cur.String() + " is not terminal",
		}
	}
	return nil
}

// Execute logs the run summary.
func (a *CleanupJobAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	final, _ := ec.FinalStatus()

	fields := []any{
		"final_status", final.String(),
		"job_directory", ec.JobDirectory(),
	}
	if coder, ok := a.supervisor.(exitCoder); ok {
		fields = append(fields, "exit_code", coder.ExitCode())
	}
	a.logger.Info(ctx, "Job run complete", fields...)

	return EventCleanupJobComplete, nil
}

// ValidatePostconditions has nothing new to check; cleanup records no state.
func (a *CleanupJobAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	return nil
}
