package agent

import (
	"context"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// MonitorJobAction blocks until the supervised process reaches a terminal
// outcome and persists that outcome as the job's final status. A job that
// exits non-zero completes this phase normally; FAILED is a legitimate
// terminal status of the job, not a failure of the agent. Only an interrupted
// wait, where the true outcome is unknown, errors out of this phase.
type MonitorJobAction struct {
	registry   execution.RegistryClient
	supervisor execution.ProcessSupervisor
	jobID      string

	logger *logger.Logger
}

var _ Action = (*MonitorJobAction)(nil)

// NewMonitorJobAction builds the monitoring phase.
func NewMonitorJobAction(
	registry execution.RegistryClient,
	supervisor execution.ProcessSupervisor,
	jobID string,
	log *logger.Logger,
) *MonitorJobAction {
	return &MonitorJobAction{
		registry:   registry,
		supervisor: supervisor,
		jobID:      jobID,
		logger:     log.With("component", "monitor_job_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires RUNNING status with no final status yet.
func (a *MonitorJobAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireStatus(StateMonitorJob, ec, execution.JobStatusRunning); err != nil {
		return err
	}
	if final, ok := ec.FinalStatus(); ok {
		return &InvariantViolationError{
			State:  StateMonitorJob,
			Detail: "final status " + final.String() + " already recorded",
		}
	}
	return nil
}

// Execute waits for the process and records its terminal outcome.
func (a *MonitorJobAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	final, err := a.supervisor.Wait(ctx)
	if err != nil {
		return "", err
	}

	message := execution.FinalStatusMessage(final)
	if err := transitionStatus(ctx, a.registry, ec, a.jobID, final, message); err != nil {
		return "", err
	}
	if err := ec.SetFinalStatus(final); err != nil {
		return "", err
	}

	a.logger.Info(ctx, "Job process completed", "final_status", final.String(), "message", message)
	return EventMonitorJobComplete, nil
}

// ValidatePostconditions requires a recorded terminal final status matching
// the current status.
func (a *MonitorJobAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	final, ok := ec.FinalStatus()
	if !ok {
		return &InvariantViolationError{State: StateMonitorJob, Detail: "no final status recorded"}
	}
	if !final.IsTerminal() {
		return &InvariantViolationError{
			State:  StateMonitorJob,
			Detail: "final status " + final.String() + " is not terminal",
		}
	}
	return requireStatus(StateMonitorJob, ec, final)
}
