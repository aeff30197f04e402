package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// jobManifest is the execution record staged into the job directory before
// launch. Operators and post-mortem tooling read it to see exactly what the
// agent was about to run and which agent ran it.
type jobManifest struct {
	JobID         string                      `yaml:"job_id"`
	AgentID       string                      `yaml:"agent_id"`
	AgentHostname string                      `yaml:"agent_hostname"`
	AgentVersion  string                      `yaml:"agent_version"`
	AgentPID      int                         `yaml:"agent_pid"`
	CreatedAt     time.Time                   `yaml:"created_at"`
	Specification *execution.JobSpecification `yaml:"specification"`
}

// SetUpJobAction stages execution metadata into the job directory: the
// manifest written here is the last artifact produced before the process
// starts. It moves the job from CONFIGURED to READY.
type SetUpJobAction struct {
	registry execution.RegistryClient
	jobID    string
	meta     execution.AgentMetadata

	logger *logger.Logger
}

var _ Action = (*SetUpJobAction)(nil)

// NewSetUpJobAction builds the setup phase.
func NewSetUpJobAction(
	registry execution.RegistryClient,
	jobID string,
	meta execution.AgentMetadata,
	log *logger.Logger,
) *SetUpJobAction {
	return &SetUpJobAction{
		registry: registry,
		jobID:    jobID,
		meta:     meta,
		logger:   log.With("component", "setup_job_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires a specification and directory in CONFIGURED.
func (a *SetUpJobAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireStatus(StateSetupJob, ec, execution.JobStatusConfigured); err != nil {
		return err
	}
	if err := requireSpecification(StateSetupJob, ec); err != nil {
		return err
	}
	return requireJobDirectory(StateSetupJob, ec)
}

// Execute writes the job manifest and marks the job ready to launch.
func (a *SetUpJobAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	manifest := jobManifest{
		JobID:         a.jobID,
		AgentID:       a.meta.AgentID.String(),
		AgentHostname: a.meta.Hostname,
		AgentVersion:  a.meta.Version,
		AgentPID:      a.meta.PID,
		CreatedAt:     time.Now().UTC(),
		Specification: ec.JobSpecification(),
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return "", fmt.Errorf("encoding job manifest: %w", err)
	}

	manifestPath := filepath.Join(ec.JobDirectory(), manifestFileName)
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing job manifest %s: %w", manifestPath, err)
	}

	if err := transitionStatus(ctx, a.registry, ec, a.jobID,
		execution.JobStatusReady, execution.StatusMessageReady); err != nil {
		return "", err
	}

	a.logger.Debug(ctx, "Job setup complete", "manifest", manifestPath)
	return EventSetupJobComplete, nil
}

// ValidatePostconditions requires READY status.
func (a *SetUpJobAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	return requireStatus(StateSetupJob, ec, execution.JobStatusReady)
}
