package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/dirigent/internal/domain/events"
)

// Event types emitted during a job's execution lifecycle:
const (
	EventTypeJobStatusChanged events.EventType = "JobStatusChanged"
	EventTypeAgentHeartbeat   events.EventType = "AgentHeartbeat"
	EventTypeJobKillRequested events.EventType = "JobKillRequested"
)

// JobStatusChangedEvent announces that a job's status advanced in the
// registry. It is emitted after the registry accepted the transition, so
// consumers observe the same ordering the registry does.
type JobStatusChangedEvent struct {
	occurredAt time.Time
	JobID      string
	From       JobStatus
	To         JobStatus
	Message    string
}

// NewJobStatusChangedEvent creates a new job status changed event.
func NewJobStatusChangedEvent(jobID string, from, to JobStatus, message string) JobStatusChangedEvent {
	return JobStatusChangedEvent{
		occurredAt: time.Now(),
		JobID:      jobID,
		From:       from,
		To:         to,
		Message:    message,
	}
}

// ReconstructJobStatusChangedEvent rebuilds the event from stored fields.
// This should only be used when deserializing from the wire.
func ReconstructJobStatusChangedEvent(jobID string, from, to JobStatus, message string, occurredAt time.Time) JobStatusChangedEvent {
	return JobStatusChangedEvent{
		occurredAt: occurredAt,
		JobID:      jobID,
		From:       from,
		To:         to,
		Message:    message,
	}
}

func (e JobStatusChangedEvent) EventType() events.EventType { return EventTypeJobStatusChanged }
func (e JobStatusChangedEvent) OccurredAt() time.Time       { return e.occurredAt }

// IsTerminal reports whether the event carries the job's terminal transition.
func (e JobStatusChangedEvent) IsTerminal() bool { return e.To.IsTerminal() }

// AgentHeartbeatEvent signals that the agent running a job is alive. Emitted
// on a fixed interval for the lifetime of the run.
type AgentHeartbeatEvent struct {
	occurredAt time.Time
	AgentID    uuid.UUID
	JobID      string
	Hostname   string
	Sequence   uint64
}

// NewAgentHeartbeatEvent creates a new agent heartbeat event.
func NewAgentHeartbeatEvent(agentID uuid.UUID, jobID, hostname string, sequence uint64) AgentHeartbeatEvent {
	return AgentHeartbeatEvent{
		occurredAt: time.Now(),
		AgentID:    agentID,
		JobID:      jobID,
		Hostname:   hostname,
		Sequence:   sequence,
	}
}

// ReconstructAgentHeartbeatEvent rebuilds the event from stored fields.
// This should only be used when deserializing from the wire.
func ReconstructAgentHeartbeatEvent(agentID uuid.UUID, jobID, hostname string, sequence uint64, occurredAt time.Time) AgentHeartbeatEvent {
	return AgentHeartbeatEvent{
		occurredAt: occurredAt,
		AgentID:    agentID,
		JobID:      jobID,
		Hostname:   hostname,
		Sequence:   sequence,
	}
}

func (e AgentHeartbeatEvent) EventType() events.EventType { return EventTypeAgentHeartbeat }
func (e AgentHeartbeatEvent) OccurredAt() time.Time       { return e.occurredAt }

// JobKillRequestedEvent signals that an operator or the registry asked for the
// job to be killed. The agent running the job reacts by killing the job
// process; the eventual outcome surfaces as a KILLED status transition.
type JobKillRequestedEvent struct {
	occurredAt time.Time
	JobID      string
	Reason     string
}

// NewJobKillRequestedEvent creates a new job kill requested event.
func NewJobKillRequestedEvent(jobID, reason string) JobKillRequestedEvent {
	return JobKillRequestedEvent{
		occurredAt: time.Now(),
		JobID:      jobID,
		Reason:     reason,
	}
}

// ReconstructJobKillRequestedEvent rebuilds the event from stored fields.
// This should only be used when deserializing from the wire.
func ReconstructJobKillRequestedEvent(jobID, reason string, occurredAt time.Time) JobKillRequestedEvent {
	return JobKillRequestedEvent{
		occurredAt: occurredAt,
		JobID:      jobID,
		Reason:     reason,
	}
}

func (e JobKillRequestedEvent) EventType() events.EventType { return EventTypeJobKillRequested }
func (e JobKillRequestedEvent) OccurredAt() time.Time       { return e.occurredAt }
