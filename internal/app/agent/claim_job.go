package agent

import (
	"context"
	"fmt"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// ClaimJobAction atomically claims the job for this agent. The claim is the
// exclusivity barrier of the whole lifecycle: once it succeeds, the registry
// has recorded this agent as the job's owner and moved the job to CLAIMED, so
// no other agent can pick it up.
type ClaimJobAction struct {
	registry execution.RegistryClient
	jobID    string
	meta     execution.AgentMetadata

	logger *logger.Logger
}

var _ Action = (*ClaimJobAction)(nil)

// NewClaimJobAction builds the claim phase for the given job.
func NewClaimJobAction(
	registry execution.RegistryClient,
	jobID string,
	meta execution.AgentMetadata,
	log *logger.Logger,
) *ClaimJobAction {
	return &ClaimJobAction{
		registry: registry,
		jobID:    jobID,
		meta:     meta,
		logger:   log.With("component", "claim_job_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires a fresh execution context: nothing claimed
// and no status recorded yet.
func (a *ClaimJobAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if ec.IsClaimed() {
		return &InvariantViolationError{
			State:  StateClaimJob,
			Detail: fmt.Sprintf("job %s already claimed", ec.ClaimedJobID()),
		}
	}
	if cur := ec.CurrentStatus(); cur != execution.JobStatusUnspecified {
		return &InvariantViolationError{
			State:  StateClaimJob,
			Detail: fmt.Sprintf("expected no job status before claim, have %s", cur),
		}
	}
	return nil
}

// Execute claims the job and records the claim locally. The specification
// returned by the claim reflects the job as submitted; the authoritative
// resolved specification is fetched later, during resolution.
func (a *ClaimJobAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	submitted, err := a.registry.ClaimJob(ctx, a.jobID, a.meta)
	if err != nil {
		return "", fmt.Errorf("claiming job %s: %w", a.jobID, err)
	}

	if err := ec.RecordClaim(a.jobID); err != nil {
		return "", err
	}
	if err := ec.SetCurrentStatus(execution.JobStatusClaimed); err != nil {
		return "", err
	}

	a.logger.Info(ctx, "Job claimed",
		"agent_id", a.meta.AgentID.String(),
		"hostname", a.meta.Hostname,
		"command_args", len(submitted.CommandArgs),
	)
	return EventClaimJobComplete, nil
}

// ValidatePostconditions requires the claim to be recorded and the job to be
// in CLAIMED.
func (a *ClaimJobAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireClaimed(StateClaimJob, ec); err != nil {
		return err
	}
	return requireStatus(StateClaimJob, ec, execution.JobStatusClaimed)
}
