package serialization

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/dirigent/internal/domain/execution"
	serializationerrors "github.com/ahrav/dirigent/internal/infra/eventbus/serialization/errors"
)

// Wire representations for execution lifecycle events. Timestamps travel as
// Unix nanoseconds so reconstructed events keep their original occurrence
// time.

type jobStatusChangedWire struct {
	JobID      string `json:"job_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Message    string `json:"message"`
	OccurredAt int64  `json:"occurred_at"`
}

// serializeJobStatusChanged converts a JobStatusChangedEvent to its wire form.
func serializeJobStatusChanged(payload any) ([]byte, error) {
	event, ok := payload.(execution.JobStatusChangedEvent)
	if !ok {
		return nil, fmt.Errorf("serializeJobStatusChanged: payload is not a JobStatusChangedEvent: %T", payload)
	}

	return json.Marshal(jobStatusChangedWire{
		JobID:      event.JobID,
		FromStatus: event.From.String(),
		ToStatus:   event.To.String(),
		Message:    event.Message,
		OccurredAt: event.OccurredAt().UnixNano(),
	})
}

// deserializeJobStatusChanged converts wire bytes back into a JobStatusChangedEvent.
func deserializeJobStatusChanged(data []byte) (any, error) {
	var wire jobStatusChangedWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal JobStatusChangedEvent: %w", err)
	}

	return execution.ReconstructJobStatusChangedEvent(
		wire.JobID,
		execution.ParseJobStatus(wire.FromStatus),
		execution.ParseJobStatus(wire.ToStatus),
		wire.Message,
		time.Unix(0, wire.OccurredAt),
	), nil
}

type agentHeartbeatWire struct {
	AgentID    string `json:"agent_id"`
	JobID      string `json:"job_id"`
	Hostname   string `json:"hostname"`
	Sequence   uint64 `json:"sequence"`
	OccurredAt int64  `json:"occurred_at"`
}

// serializeAgentHeartbeat converts an AgentHeartbeatEvent to its wire form.
func serializeAgentHeartbeat(payload any) ([]byte, error) {
	event, ok := payload.(execution.AgentHeartbeatEvent)
	if !ok {
		return nil, fmt.Errorf("serializeAgentHeartbeat: payload is not an AgentHeartbeatEvent: %T", payload)
	}

	return json.Marshal(agentHeartbeatWire{
		AgentID:    event.AgentID.String(),
		JobID:      event.JobID,
		Hostname:   event.Hostname,
		Sequence:   event.Sequence,
		OccurredAt: event.OccurredAt().UnixNano(),
	})
}

// deserializeAgentHeartbeat converts wire bytes back into an AgentHeartbeatEvent.
func deserializeAgentHeartbeat(data []byte) (any, error) {
	var wire agentHeartbeatWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal AgentHeartbeatEvent: %w", err)
	}

	agentID, err := uuid.Parse(wire.AgentID)
	if err != nil {
		return nil, serializationerrors.ErrInvalidUUID{Field: "agent_id", Err: err}
	}

	return execution.ReconstructAgentHeartbeatEvent(
		agentID,
		wire.JobID,
		wire.Hostname,
		wire.Sequence,
		time.Unix(0, wire.OccurredAt),
	), nil
}

type jobKillRequestedWire struct {
	JobID      string `json:"job_id"`
	Reason     string `json:"reason"`
	OccurredAt int64  `json:"occurred_at"`
}

// serializeJobKillRequested converts a JobKillRequestedEvent to its wire form.
func serializeJobKillRequested(payload any) ([]byte, error) {
	event, ok := payload.(execution.JobKillRequestedEvent)
	if !ok {
		return nil, fmt.Errorf("serializeJobKillRequested: payload is not a JobKillRequestedEvent: %T", payload)
	}

	return json.Marshal(jobKillRequestedWire{
		JobID:      event.JobID,
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt().UnixNano(),
	})
}

// deserializeJobKillRequested converts wire bytes back into a JobKillRequestedEvent.
func deserializeJobKillRequested(data []byte) (any, error) {
	var wire jobKillRequestedWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal JobKillRequestedEvent: %w", err)
	}

	return execution.ReconstructJobKillRequestedEvent(
		wire.JobID,
		wire.Reason,
		time.Unix(0, wire.OccurredAt),
	), nil
}
