// Package process supervises the OS-level child process that runs a job's
// command. It owns launch, wait, and kill for exactly one process and maps the
// process outcome onto the job lifecycle's terminal statuses.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// Supervisor runs a single job process. Launch and Wait are called from the
// driving goroutine; Kill may be called concurrently from a signal handler or
// a kill-event listener. All process state is guarded by the supervisor's own
// lock, never by the execution context.
type Supervisor struct {
	log    *logger.Logger
	tracer trace.Tracer

	mu            sync.Mutex
	cmd           *exec.Cmd
	stdout        *os.File
	stderr        *os.File
	launched      bool
	killRequested bool
	exited        bool
	exitCode      int

	// done is closed when the process has exited, or immediately on a kill
	// request that arrives before launch.
	done     chan struct{}
	doneOnce sync.Once
}

var _ execution.ProcessSupervisor = (*Supervisor)(nil)

// NewSupervisor creates a supervisor for one job process.
func NewSupervisor(log *logger.Logger, tracer trace.Tracer) *Supervisor {
	return &Supervisor{
		log:    log.With("component", "process_supervisor"),
		tracer: tracer,
		done:   make(chan struct{}),
	}
}

// Launch starts the job process in its own process group so a later kill
// reaches the whole tree. If a kill was requested before launch, nothing is
// started and Wait reports KILLED.
func (s *Supervisor) Launch(ctx context.Context, spec execution.LaunchSpec) error {
	ctx, span := s.tracer.Start(ctx, "process_supervisor.launch",
		trace.WithAttributes(
			attribute.StringSlice("process.argv", spec.Argv),
			attribute.String("process.dir", spec.Dir),
		))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.killRequested {
		span.AddEvent("launch_skipped_after_kill")
		s.log.Warn(ctx, "kill already requested, skipping process launch")
		return nil
	}
	if s.launched {
		err := errors.New("process already launched")
		span.RecordError(err)
		return err
	}
	if len(spec.Argv) == 0 {
		err := &execution.LaunchError{Err: errors.New("empty argv")}
		span.RecordError(err)
		return err
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	// Place the job in its own process group so Kill can signal the group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if spec.Interactive {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		stdout, err := os.OpenFile(spec.StdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			launchErr := &execution.LaunchError{Path: spec.Argv[0], Err: fmt.Errorf("open stdout log: %w", err)}
			span.RecordError(launchErr)
			return launchErr
		}
		stderr, err := os.OpenFile(spec.StderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			stdout.Close()
			launchErr := &execution.LaunchError{Path: spec.Argv[0], Err: fmt.Errorf("open stderr log: %w", err)}
			span.RecordError(launchErr)
			return launchErr
		}
		s.stdout, s.stderr = stdout, stderr
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}

	if err := cmd.Start(); err != nil {
		s.closeLogs()
		launchErr := &execution.LaunchError{Path: spec.Argv[0], Err: err}
		span.RecordError(launchErr)
		return launchErr
	}
	s.cmd = cmd
	s.launched = true

	span.AddEvent("process_started", trace.WithAttributes(attribute.Int("process.pid", cmd.Process.Pid)))
	s.log.Info(ctx, "job process started", "path", spec.Argv[0], "pid", cmd.Process.Pid, "dir", spec.Dir)

	go s.reap()
	return nil
}

// reap waits for the process to exit, records its exit code, and releases
// anyone blocked in Wait.
func (s *Supervisor) reap() {
	err := s.cmd.Wait()

	s.mu.Lock()
	switch {
	case err == nil:
		s.exitCode = 0
	case s.cmd.ProcessState != nil:
		s.exitCode = s.cmd.ProcessState.ExitCode()
	default:
		// Wait failed before the process state was captured; treat it as a
		// failed run.
		s.exitCode = -1
	}
	s.exited = true
	s.closeLogs()
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
}

// Wait blocks until the process exits or is killed and maps the outcome to a
// terminal job status. A context cancellation while waiting means the agent is
// being torn down before the job's fate is known; that surfaces as a fatal
// ExecutionInterruptedError rather than a guessed status.
func (s *Supervisor) Wait(ctx context.Context) (execution.JobStatus, error) {
	ctx, span := s.tracer.Start(ctx, "process_supervisor.wait")
	defer span.End()

	select {
	case <-ctx.Done():
		err := &execution.ExecutionInterruptedError{Err: ctx.Err()}
		span.RecordError(err)
		return execution.JobStatusUnspecified, err
	case <-s.done:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := execution.JobStatusSucceeded
	switch {
	case s.killRequested:
		status = execution.JobStatusKilled
	case s.exitCode != 0:
		status = execution.JobStatusFailed
	}

	span.AddEvent("process_exited", trace.WithAttributes(
		attribute.Int("process.exit_code", s.exitCode),
		attribute.String("process.final_status", status.String()),
	))
	s.log.Info(ctx, "job process finished", "exit_code", s.exitCode, "final_status", status)
	return status, nil
}

// Kill terminates the job's process group. Idempotent: the first call wins and
// later calls return immediately. Before launch it marks the supervisor killed
// so the launch becomes a no-op; after exit the signal is a no-op.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.killRequested || s.exited {
		return
	}
	s.killRequested = true

	if !s.launched {
		// Nothing running; release waiters so they observe KILLED.
		s.doneOnce.Do(func() { close(s.done) })
		return
	}

	if s.cmd.Process != nil {
		// Negative pid signals the whole process group. ESRCH means the
		// process already exited, which is fine.
		if err := syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			s.log.Error(context.Background(), "failed to signal job process group", "pid", s.cmd.Process.Pid, "err", err)
		}
	}
}

// ExitCode returns the process exit code. Only meaningful after Wait has
// returned a non-killed status.
func (s *Supervisor) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

func (s *Supervisor) closeLogs() {
	if s.stdout != nil {
		s.stdout.Close()
		s.stdout = nil
	}
	if s.stderr != nil {
		s.stderr.Close()
		s.stderr = nil
	}
}
