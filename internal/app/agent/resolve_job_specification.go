package agent

import (
	"context"
	"fmt"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// ResolveJobSpecificationAction fetches the authoritative resolved
// specification from the registry and pins it into the execution context. A
// specification that fails structural validation stops the run here; nothing
// downstream may launch from a malformed plan. It moves the job from INIT to
// RESOLVED.
type ResolveJobSpecificationAction struct {
	registry execution.RegistryClient
	jobID    string

	logger *logger.Logger
}

var _ Action = (*ResolveJobSpecificationAction)(nil)

// NewResolveJobSpecificationAction builds the resolution phase.
func NewResolveJobSpecificationAction(
	registry execution.RegistryClient,
	jobID string,
	log *logger.Logger,
) *ResolveJobSpecificationAction {
	return &ResolveJobSpecificationAction{
		registry: registry,
		jobID:    jobID,
		logger:   log.With("component", "resolve_job_specification_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires the job to be in INIT with no specification
// resolved yet.
func (a *ResolveJobSpecificationAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireStatus(StateResolveJobSpecification, ec, execution.JobStatusInit); err != nil {
		return err
	}
	if ec.JobSpecification() != nil {
		return &InvariantViolationError{
			State:  StateResolveJobSpecification,
			Detail: "job specification already resolved",
		}
	}
	return nil
}

// Execute fetches, validates, and records the resolved specification.
func (a *ResolveJobSpecificationAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	spec, err := a.registry.GetJobSpecification(ctx, a.jobID)
	if err != nil {
		return "", fmt.Errorf("resolving specification for job %s: %w", a.jobID, err)
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if spec.JobID != a.jobID {
		return "", fmt.Errorf("registry returned specification for job %s, want %s", spec.JobID, a.jobID)
	}

	if err := ec.SetJobSpecification(spec); err != nil {
		return "", err
	}

	if err := transitionStatus(ctx, a.registry, ec, a.jobID,
		execution.JobStatusResolved, execution.StatusMessageResolved); err != nil {
		return "", err
	}

	a.logger.Info(ctx, "Job specification resolved",
		"command", spec.Command.ID,
		"cluster", spec.Cluster.ID,
		"applications", len(spec.Applications),
		"interactive", spec.Interactive,
	)
	return EventResolveSpecComplete, nil
}

// ValidatePostconditions requires a pinned specification and RESOLVED status.
func (a *ResolveJobSpecificationAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireSpecification(StateResolveJobSpecification, ec); err != nil {
		return err
	}
	return requireStatus(StateResolveJobSpecification, ec, execution.JobStatusResolved)
}
