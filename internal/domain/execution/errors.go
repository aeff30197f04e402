package execution

import "fmt"

// InvalidTransitionError indicates a status change that is not declared in the
// job lifecycle adjacency. It is fatal for the run: the caller holds a stale or
// corrupted view of the lifecycle.
type InvalidTransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid job status transition from %s to %s", e.From, e.To)
}

// StaleStatusError indicates an optimistic status update lost the race: the
// registry's current status no longer matches the status the caller expected.
// A second writer already advanced the job, so retrying blindly would corrupt
// transition ordering. Fatal for the current run.
type StaleStatusError struct {
	JobID    string
	Expected JobStatus
	Actual   JobStatus
}

func (e *StaleStatusError) Error() string {
	return fmt.Sprintf("stale status for job %s: expected %s, registry reports %s",
		e.JobID, e.Expected, e.Actual)
}

// TransportError indicates the registry could not be reached or answered with
// a server-side failure. Unlike StaleStatusError it carries no state
// divergence, so callers may retry with bounded backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("registry transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// JobNotFoundError indicates the registry has no record of the requested job.
type JobNotFoundError struct{ JobID string }

func (e *JobNotFoundError) Error() string { return fmt.Sprintf("job %s not found", e.JobID) }

// JobAlreadyClaimedError indicates another agent claimed the job first.
type JobAlreadyClaimedError struct{ JobID string }

func (e *JobAlreadyClaimedError) Error() string {
	return fmt.Sprintf("job %s already claimed by another agent", e.JobID)
}

// LaunchError indicates the job's child process could not be spawned, for
// example a missing binary or denied permission. Agent-internal, never the
// job's own failure.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch job process %q: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExecutionInterruptedError indicates the agent was interrupted while waiting
// on the job process, for example by a shutdown signal. It must surface as a
// fatal agent error: swallowing it would leave the registry with a job stuck
// in RUNNING while no process exists.
type ExecutionInterruptedError struct{ Err error }

func (e *ExecutionInterruptedError) Error() string {
	return fmt.Sprintf("job execution interrupted: %v", e.Err)
}

func (e *ExecutionInterruptedError) Unwrap() error { return e.Err }
