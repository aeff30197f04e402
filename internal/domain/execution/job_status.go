package execution

import (
	"errors"
	"fmt"
)

// JobStatus represents the lifecycle state of a single job as tracked by the
// job registry. The set is closed and transitions are monotonic: a status may
// only advance along the declared adjacency, never move backward or repeat.
type JobStatus string

// ErrJobStatusUnknown is returned when a job status is unknown.
var ErrJobStatusUnknown = errors.New("job status unknown")

const (
	// JobStatusClaimed indicates an agent has claimed the job and now owns its execution.
	JobStatusClaimed JobStatus = "CLAIMED"

	// JobStatusInit indicates the agent has begun initializing the execution environment.
	JobStatusInit JobStatus = "INIT"

	// JobStatusResolved indicates the job specification has been resolved from the registry.
	JobStatusResolved JobStatus = "RESOLVED"

	// JobStatusConfigured indicates the agent's local execution environment is configured.
	JobStatusConfigured JobStatus = "CONFIGURED"

	// JobStatusReady indicates the job directory exists and the process can be launched.
	JobStatusReady JobStatus = "READY"

	// JobStatusRunning indicates the job process is executing.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded indicates the job process exited with a zero exit code.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed indicates the job process exited with a non-zero exit code.
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusKilled indicates the job process was terminated by an external kill request.
	JobStatusKilled JobStatus = "KILLED"

	// JobStatusInvalid indicates the job failed resolution or validation and will never run.
	JobStatusInvalid JobStatus = "INVALID"

	// JobStatusUnspecified is the zero value: no status has been recorded for
	// the job yet. It is never a legal value on the wire and has no
	// transitions.
	JobStatusUnspecified JobStatus = ""
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	if s == JobStatusUnspecified {
		return "UNSPECIFIED"
	}
	return string(s)
}

// ParseJobStatus converts a string to a JobStatus. Both the bare form and the
// JOB_STATUS_ prefixed enum form are accepted.
func ParseJobStatus(s string) JobStatus {
	switch s {
	case "CLAIMED", "JOB_STATUS_CLAIMED":
		return JobStatusClaimed
	case "INIT", "JOB_STATUS_INIT":
		return JobStatusInit
	case "RESOLVED", "JOB_STATUS_RESOLVED":
		return JobStatusResolved
	case "CONFIGURED", "JOB_STATUS_CONFIGURED":
		return JobStatusConfigured
	case "READY", "JOB_STATUS_READY":
		return JobStatusReady
	case "RUNNING", "JOB_STATUS_RUNNING":
		return JobStatusRunning
	case "SUCCEEDED", "JOB_STATUS_SUCCEEDED":
		return JobStatusSucceeded
	case "FAILED", "JOB_STATUS_FAILED":
		return JobStatusFailed
	case "KILLED", "JOB_STATUS_KILLED":
		return JobStatusKilled
	case "INVALID", "JOB_STATUS_INVALID":
		return JobStatusInvalid
	default:
		return JobStatusUnspecified
	}
}

// Int32 returns the stable numeric code for the status, used by clients that
// carry the enum as an integer.
func (s JobStatus) Int32() int32 {
	switch s {
	case JobStatusClaimed:
		return 1
	case JobStatusInit:
		return 2
	case JobStatusResolved:
		return 3
	case JobStatusConfigured:
		return 4
	case JobStatusReady:
		return 5
	case JobStatusRunning:
		return 6
	case JobStatusSucceeded:
		return 7
	case JobStatusFailed:
		return 8
	case JobStatusKilled:
		return 9
	case JobStatusInvalid:
		return 10
	default:
		return 0
	}
}

// ProtoString returns the SCREAMING_SNAKE_CASE enum form of the JobStatus.
func (s JobStatus) ProtoString() string {
	if s == JobStatusUnspecified {
		return "JOB_STATUS_UNSPECIFIED"
	}
	return "JOB_STATUS_" + string(s)
}

// JobStatusFromInt32 creates a JobStatus from its numeric code.
func JobStatusFromInt32(i int32) JobStatus {
	switch i {
	case 1:
		return JobStatusClaimed
	case 2:
		return JobStatusInit
	case 3:
		return JobStatusResolved
	case 4:
		return JobStatusConfigured
	case 5:
		return JobStatusReady
	case 6:
		return JobStatusRunning
	case 7:
		return JobStatusSucceeded
	case 8:
		return JobStatusFailed
	case 9:
		return JobStatusKilled
	case 10:
		return JobStatusInvalid
	default:
		return JobStatusUnspecified
	}
}

// IsTerminal reports whether the status belongs to the terminal subset
// (SUCCEEDED, FAILED, KILLED) after which no further transition is legal.
// INVALID is also a dead end in the adjacency table but is not part of the
// terminal subset used for final status reporting.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusKilled
}

// ValidateTransition checks if a status transition is legal and returns an
// InvalidTransitionError if not.
func (s JobStatus) ValidateTransition(target JobStatus) error {
	if !s.IsValidTransition(target) {
		return &InvalidTransitionError{From: s, To: target}
	}
	return nil
}

// IsValidTransition checks if the current status can transition to the target
// status. It enforces the job lifecycle rules to prevent invalid state changes.
func (s JobStatus) IsValidTransition(target JobStatus) bool {
	switch s {
	case JobStatusClaimed:
		// From Claimed, can only move to Init or abort.
		return target == JobStatusInit || target == JobStatusFailed || target == JobStatusKilled || target == JobStatusInvalid
	case JobStatusInit:
		return target == JobStatusResolved || target == JobStatusFailed || target == JobStatusKilled || target == JobStatusInvalid
	case JobStatusResolved:
		return target == JobStatusConfigured || target == JobStatusFailed || target == JobStatusKilled || target == JobStatusInvalid
	case JobStatusConfigured:
		return target == JobStatusReady || target == JobStatusFailed || target == JobStatusKilled || target == JobStatusInvalid
	case JobStatusReady:
		return target == JobStatusRunning || target == JobStatusFailed || target == JobStatusKilled || target == JobStatusInvalid
	case JobStatusRunning:
		// A running process resolves to exactly one terminal outcome.
		return target == JobStatusSucceeded || target == JobStatusFailed || target == JobStatusKilled
	case JobStatusSucceeded, JobStatusFailed, JobStatusKilled, JobStatusInvalid:
		// Dead ends - no further transitions allowed.
		return false
	case JobStatusUnspecified:
		return false
	default:
		return false
	}
}

// Status messages persisted to the registry alongside transitions. The
// terminal literals are part of the observable contract with the registry;
// external consumers may pattern-match on them, so they must not be altered.
const (
	StatusMessageInitializing = "job initializing"
	StatusMessageResolved     = "job specification resolved"
	StatusMessageConfigured   = "job execution environment configured"
	StatusMessageReady        = "job ready to launch"
	StatusMessageRunning      = "job running"

	StatusMessageSucceeded = "job finished successfully"
	StatusMessageFailed    = "job failed"
	StatusMessageKilled    = "job killed by user"

	// StatusMessageAgentError marks a failure caused by the agent itself rather
	// than the job's own exit code.
	StatusMessageAgentError = "job failed due to agent error"
)

// FinalStatusMessage maps a final job status to the message persisted with the
// terminal transition. The mapping is intentionally coarse: it does not
// distinguish a kill caused by timeout from one requested by a user.
func FinalStatusMessage(s JobStatus) string {
	switch s {
	case JobStatusSucceeded:
		return StatusMessageSucceeded
	case JobStatusFailed:
		return StatusMessageFailed
	case JobStatusKilled:
		return StatusMessageKilled
	default:
		return fmt.Sprintf("job process completed with final status %s", s)
	}
}
