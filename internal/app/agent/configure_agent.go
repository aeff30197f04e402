package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// ConfigureAgentAction prepares the agent-local prerequisites for running a
// job: the jobs root directory must exist and be writable before any per-job
// path is derived from it. It moves the job from CLAIMED to INIT.
type ConfigureAgentAction struct {
	registry execution.RegistryClient
	jobID    string
	jobsRoot string

	logger *logger.Logger
}

var _ Action = (*ConfigureAgentAction)(nil)

// NewConfigureAgentAction builds the configuration phase.
func NewConfigureAgentAction(
	registry execution.RegistryClient,
	jobID string,
	jobsRoot string,
	log *logger.Logger,
) *ConfigureAgentAction {
	return &ConfigureAgentAction{
		registry: registry,
		jobID:    jobID,
		jobsRoot: jobsRoot,
		logger:   log.With("component", "configure_agent_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires a recorded claim in CLAIMED.
func (a *ConfigureAgentAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireClaimed(StateConfigureAgent, ec); err != nil {
		return err
	}
	return requireStatus(StateConfigureAgent, ec, execution.JobStatusClaimed)
}

// Execute ensures the jobs root exists and marks the job initializing.
func (a *ConfigureAgentAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	if a.jobsRoot == "" {
		return "", &InvariantViolationError{State: StateConfigureAgent, Detail: "jobs root not configured"}
	}
	if err := os.MkdirAll(a.jobsRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating jobs root %s: %w", a.jobsRoot, err)
	}

	if err := transitionStatus(ctx, a.registry, ec, a.jobID,
		execution.JobStatusInit, execution.StatusMessageInitializing); err != nil {
		return "", err
	}

	a.logger.Debug(ctx, "Agent configured", "jobs_root", a.jobsRoot)
	return EventConfigureAgentComplete, nil
}

// ValidatePostconditions requires the job to be in INIT.
func (a *ConfigureAgentAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	return requireStatus(StateConfigureAgent, ec, execution.JobStatusInit)
}
