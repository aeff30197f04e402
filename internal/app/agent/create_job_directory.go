package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// Job directory layout. The job process runs with the job directory as its
// working directory; its output streams land under logs/ unless the job is
// interactive.
const (
	logsDirName      = "logs"
	stdoutFileName   = "stdout"
	stderrFileName   = "stderr"
	manifestFileName = "manifest.yaml"
)

// CreateJobDirectoryAction materializes the job's working directory and log
// layout on disk. The directory comes from the resolved specification when the
// registry placed the job explicitly, otherwise it is derived from the agent's
// jobs root. It moves the job from RESOLVED to CONFIGURED.
type CreateJobDirectoryAction struct {
	registry execution.RegistryClient
	jobID    string
	jobsRoot string

	logger *logger.Logger
}

var _ Action = (*CreateJobDirectoryAction)(nil)

// NewCreateJobDirectoryAction builds the directory creation phase.
func NewCreateJobDirectoryAction(
	registry execution.RegistryClient,
	jobID string,
	jobsRoot string,
	log *logger.Logger,
) *CreateJobDirectoryAction {
	return &CreateJobDirectoryAction{
		registry: registry,
		jobID:    jobID,
		jobsRoot: jobsRoot,
		logger:   log.With("component", "create_job_directory_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires a resolved specification in RESOLVED with no
// directory recorded yet.
func (a *CreateJobDirectoryAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireStatus(StateCreateJobDirectory, ec, execution.JobStatusResolved); err != nil {
		return err
	}
	if err := requireSpecification(StateCreateJobDirectory, ec); err != nil {
		return err
	}
	if ec.JobDirectory() != "" {
		return &InvariantViolationError{
			State:  StateCreateJobDirectory,
			Detail: "job directory already created",
		}
	}
	return nil
}

// Execute creates the job directory tree and records its path.
func (a *CreateJobDirectoryAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	dir := ec.JobSpecification().JobDirectory
	if dir == "" {
		dir = filepath.Join(a.jobsRoot, a.jobID)
	}

	if err := os.MkdirAll(filepath.Join(dir, logsDirName), 0o755); err != nil {
		return "", fmt.Errorf("creating job directory %s: %w", dir, err)
	}

	if err := ec.SetJobDirectory(dir); err != nil {
		return "", err
	}

	if err := transitionStatus(ctx, a.registry, ec, a.jobID,
		execution.JobStatusConfigured, execution.StatusMessageConfigured); err != nil {
		return "", err
	}

	a.logger.Debug(ctx, "Job directory created", "job_directory", dir)
	return EventCreateJobDirComplete, nil
}

// ValidatePostconditions requires a recorded directory and CONFIGURED status.
func (a *CreateJobDirectoryAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireJobDirectory(StateCreateJobDirectory, ec); err != nil {
		return err
	}
	return requireStatus(StateCreateJobDirectory, ec, execution.JobStatusConfigured)
}
