package serialization

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/dirigent/internal/domain/execution"
	serializationerrors "github.com/ahrav/dirigent/internal/infra/eventbus/serialization/errors"
)

func TestJobStatusChangedEventRoundTrip(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	event := execution.ReconstructJobStatusChangedEvent(
		"job-42",
		execution.JobStatusRunning,
		execution.JobStatusSucceeded,
		execution.StatusMessageSucceeded,
		occurred,
	)

	data, err := SerializePayload(execution.EventTypeJobStatusChanged, event)
	require.NoError(t, err)

	payload, err := DeserializePayload(execution.EventTypeJobStatusChanged, data)
	require.NoError(t, err)

	restored, ok := payload.(execution.JobStatusChangedEvent)
	require.True(t, ok, "expected JobStatusChangedEvent, got %T", payload)
	assert.Equal(t, "job-42", restored.JobID)
	assert.Equal(t, execution.JobStatusRunning, restored.From)
	assert.Equal(t, execution.JobStatusSucceeded, restored.To)
	assert.Equal(t, execution.StatusMessageSucceeded, restored.Message)
	assert.True(t, restored.OccurredAt().Equal(occurred),
		"occurredAt not preserved: got %v want %v", restored.OccurredAt(), occurred)
}

func TestJobStatusChangedEventRejectsWrongPayloadType(t *testing.T) {
	_, err := SerializePayload(execution.EventTypeJobStatusChanged, "not an event")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JobStatusChangedEvent")
}

func TestAgentHeartbeatEventRoundTrip(t *testing.T) {
	agentID := uuid.New()
	occurred := time.Date(2025, 6, 1, 12, 31, 0, 0, time.UTC)
	event := execution.ReconstructAgentHeartbeatEvent(agentID, "job-42", "agent-host-1", 17, occurred)

	data, err := SerializePayload(execution.EventTypeAgentHeartbeat, event)
	require.NoError(t, err)

	payload, err := DeserializePayload(execution.EventTypeAgentHeartbeat, data)
	require.NoError(t, err)

	restored, ok := payload.(execution.AgentHeartbeatEvent)
	require.True(t, ok, "expected AgentHeartbeatEvent, got %T", payload)
	assert.Equal(t, agentID, restored.AgentID)
	assert.Equal(t, "job-42", restored.JobID)
	assert.Equal(t, "agent-host-1", restored.Hostname)
	assert.Equal(t, uint64(17), restored.Sequence)
	assert.True(t, restored.OccurredAt().Equal(occurred))
}

func TestAgentHeartbeatEventRejectsMalformedAgentID(t *testing.T) {
	_, err := DeserializePayload(
		execution.EventTypeAgentHeartbeat,
		[]byte(`{"agent_id":"not-a-uuid","job_id":"job-42","hostname":"h","sequence":1,"occurred_at":0}`),
	)
	require.Error(t, err)

	var invalidUUID serializationerrors.ErrInvalidUUID
	require.ErrorAs(t, err, &invalidUUID)
	assert.Equal(t, "agent_id", invalidUUID.Field)
}

func TestJobKillRequestedEventRoundTrip(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 32, 0, 987654321, time.UTC)
	event := execution.ReconstructJobKillRequestedEvent("job-42", "user requested kill", occurred)

	data, err := SerializePayload(execution.EventTypeJobKillRequested, event)
	require.NoError(t, err)

	payload, err := DeserializePayload(execution.EventTypeJobKillRequested, data)
	require.NoError(t, err)

	restored, ok := payload.(execution.JobKillRequestedEvent)
	require.True(t, ok, "expected JobKillRequestedEvent, got %T", payload)
	assert.Equal(t, "job-42", restored.JobID)
	assert.Equal(t, "user requested kill", restored.Reason)
	assert.True(t, restored.OccurredAt().Equal(occurred))
}

func TestSerializePayloadUnknownEventType(t *testing.T) {
	_, err := SerializePayload("NoSuchEvent", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no serializer registered")
}

func TestDeserializePayloadUnknownEventType(t *testing.T) {
	_, err := DeserializePayload("NoSuchEvent", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deserializer registered")
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 33, 0, 0, time.UTC)
	event := execution.ReconstructJobStatusChangedEvent(
		"job-99",
		execution.JobStatusClaimed,
		execution.JobStatusInit,
		execution.StatusMessageInitializing,
		occurred,
	)

	raw, err := SerializeEventEnvelope(execution.EventTypeJobStatusChanged, event)
	require.NoError(t, err)

	eventType, payloadBytes, err := UnmarshalUniversalEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, execution.EventTypeJobStatusChanged, eventType)

	payload, err := DeserializePayload(eventType, payloadBytes)
	require.NoError(t, err)

	restored, ok := payload.(execution.JobStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "job-99", restored.JobID)
	assert.Equal(t, execution.JobStatusInit, restored.To)
}

func TestUnmarshalUniversalEnvelopeErrors(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		_, _, err := UnmarshalUniversalEnvelope([]byte("{"))
		require.Error(t, err)
	})

	t.Run("missing event type", func(t *testing.T) {
		_, _, err := UnmarshalUniversalEnvelope([]byte(`{"payload":"e30="}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing event type")
	})
}
