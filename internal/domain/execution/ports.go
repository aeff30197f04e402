// Package execution provides the domain types and interfaces for running a
// single job on an agent: the job lifecycle status model, the mutable record
// threaded through the lifecycle phases, and the contracts the agent needs
// from the job registry and the operating system process layer.
package execution

import "context"

// RegistryClient is the agent's view of the remote job registry, the
// authoritative store of job definitions and status.
type RegistryClient interface {
	// ClaimJob atomically claims the job for this agent and returns its
	// specification. Fails with JobAlreadyClaimedError if another agent won
	// the claim, JobNotFoundError if the registry has no such job, or
	// TransportError if the registry could not be reached.
	ClaimJob(ctx context.Context, jobID string, meta AgentMetadata) (*JobSpecification, error)

	// ChangeJobStatus performs an optimistic compare-and-set of the job's
	// status: the update applies only if the registry's current status still
	// equals expected. On success the registry's status, message, and
	// last-updated timestamp change atomically from the caller's perspective.
	// Fails with StaleStatusError if another writer raced ahead,
	// InvalidTransitionError if the change violates the lifecycle adjacency,
	// or TransportError on network or service failure.
	ChangeJobStatus(ctx context.Context, jobID string, expected, next JobStatus, message string) error

	// GetJobSpecification fetches the resolved specification for a job.
	GetJobSpecification(ctx context.Context, jobID string) (*JobSpecification, error)
}

// LaunchSpec describes the OS process to start for a job.
type LaunchSpec struct {
	// Argv is the executable followed by its arguments. Must be non-empty.
	Argv []string

	// Env is the environment for the process. Entries are added on top of the
	// agent's own environment.
	Env map[string]string

	// Dir is the working directory for the process.
	Dir string

	// StdoutPath and StderrPath are the files the process's output streams are
	// redirected to. Ignored when Interactive is set.
	StdoutPath string
	StderrPath string

	// Interactive attaches the process to the agent's own stdout and stderr.
	Interactive bool
}

// ProcessSupervisor owns the lifecycle of the OS-level child process that runs
// a job's command. One supervisor instance supervises exactly one process.
type ProcessSupervisor interface {
	// Launch starts the child process. Fails with LaunchError if the
	// executable cannot be spawned. Launching after a kill request is a no-op:
	// the supervisor stays in its killed state and Wait reports KILLED.
	Launch(ctx context.Context, spec LaunchSpec) error

	// Wait blocks until the child process exits or is killed, and maps the
	// outcome to a terminal status: zero exit code to SUCCEEDED, non-zero to
	// FAILED, an external kill to KILLED. Context cancellation interrupts the
	// wait with ExecutionInterruptedError; the final status of the job is then
	// unknown and the run must be treated as an agent failure.
	Wait(ctx context.Context) (JobStatus, error)

	// Kill terminates the process group. Idempotent: safe to call before
	// launch (the later launch becomes a no-op), during execution, or after
	// exit. A concurrent blocked Wait observes the kill within a bounded
	// delay and returns KILLED.
	Kill()
}
