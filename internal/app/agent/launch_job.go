package agent

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// Environment variables the agent exports into every job process so the job
// can locate itself without parsing agent configuration.
const (
	envJobID  = "DIRIGENT_JOB_ID"
	envJobDir = "DIRIGENT_JOB_DIR"
)

// LaunchJobAction starts the job's OS process under the supervisor and arms
// the wall-clock timeout when the specification carries one. It moves the job
// from READY to RUNNING; the status change happens after a successful launch
// so RUNNING is never reported for a process that failed to spawn.
type LaunchJobAction struct {
	registry   execution.RegistryClient
	supervisor execution.ProcessSupervisor
	jobID      string

	// killTimer is armed on launch when the job has a timeout. It fires
	// supervisor.Kill, which is a no-op once the process has exited, so the
	// timer is never explicitly stopped.
	killTimer *time.Timer

	logger *logger.Logger
}

var _ Action = (*LaunchJobAction)(nil)

// NewLaunchJobAction builds the launch phase.
func NewLaunchJobAction(
	registry execution.RegistryClient,
	supervisor execution.ProcessSupervisor,
	jobID string,
	log *logger.Logger,
) *LaunchJobAction {
	return &LaunchJobAction{
		registry:   registry,
		supervisor: supervisor,
		jobID:      jobID,
		logger:     log.With("component", "launch_job_action", "job_id", jobID),
	}
}

// ValidatePreconditions requires a specification and directory in READY.
func (a *LaunchJobAction) ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := requireStatus(StateLaunchJob, ec, execution.JobStatusReady); err != nil {
		return err
	}
	if err := requireSpecification(StateLaunchJob, ec); err != nil {
		return err
	}
	return requireJobDirectory(StateLaunchJob, ec)
}

// Execute launches the process and marks the job running.
func (a *LaunchJobAction) Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error) {
	spec := ec.JobSpecification()
	dir := ec.JobDirectory()

	env := make(map[string]string, len(spec.Environment)+2)
	for k, v := range spec.Environment {
		env[k] = v
	}
	env[envJobID] = a.jobID
	env[envJobDir] = dir

	launch := execution.LaunchSpec{
		Argv:        spec.ExecutableArgs(),
		Env:         env,
		Dir:         dir,
		StdoutPath:  filepath.Join(dir, logsDirName, stdoutFileName),
		StderrPath:  filepath.Join(dir, logsDirName, stderrFileName),
		Interactive: spec.Interactive,
	}

	if err := a.supervisor.Launch(ctx, launch); err != nil {
		return "", err
	}

	if t := spec.TimeoutSeconds; t != nil {
		timeout := time.Duration(*t) * time.Second
		a.killTimer = time.AfterFunc(timeout, a.supervisor.Kill)
		a.logger.Info(ctx, "Job timeout armed", "timeout", timeout.String())
	}

	if err := transitionStatus(ctx, a.registry, ec, a.jobID,
		execution.JobStatusRunning, execution.StatusMessageRunning); err != nil {
		return "", err
	}

	a.logger.Info(ctx, "Job process launched",
		"executable", launch.Argv[0],
		"args", len(launch.Argv)-1,
		"interactive", launch.Interactive,
	)
	return EventLaunchJobComplete, nil
}

// ValidatePostconditions requires RUNNING status.
func (a *LaunchJobAction) ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error {
	return requireStatus(StateLaunchJob, ec, execution.JobStatusRunning)
}
