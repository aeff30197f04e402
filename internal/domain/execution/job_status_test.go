package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current JobStatus
		target  JobStatus
	}{
		{name: "Claimed to Init is valid", current: JobStatusClaimed, target: JobStatusInit},
		{name: "Claimed to Failed is valid", current: JobStatusClaimed, target: JobStatusFailed},
		{name: "Claimed to Killed is valid", current: JobStatusClaimed, target: JobStatusKilled},
		{name: "Claimed to Invalid is valid", current: JobStatusClaimed, target: JobStatusInvalid},
		{name: "Init to Resolved is valid", current: JobStatusInit, target: JobStatusResolved},
		{name: "Init to Invalid is valid", current: JobStatusInit, target: JobStatusInvalid},
		{name: "Resolved to Configured is valid", current: JobStatusResolved, target: JobStatusConfigured},
		{name: "Resolved to Killed is valid", current: JobStatusResolved, target: JobStatusKilled},
		{name: "Configured to Ready is valid", current: JobStatusConfigured, target: JobStatusReady},
		{name: "Ready to Running is valid", current: JobStatusReady, target: JobStatusRunning},
		{name: "Ready to Failed is valid", current: JobStatusReady, target: JobStatusFailed},
		{name: "Running to Succeeded is valid", current: JobStatusRunning, target: JobStatusSucceeded},
		{name: "Running to Failed is valid", current: JobStatusRunning, target: JobStatusFailed},
		{name: "Running to Killed is valid", current: JobStatusRunning, target: JobStatusKilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.current.ValidateTransition(tt.target)
			assert.NoError(t, err, "expected valid transition from %s to %s", tt.current, tt.target)
		})
	}
}

func TestValidateTransition_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current JobStatus
		target  JobStatus
	}{
		{name: "Claimed to Resolved skips Init", current: JobStatusClaimed, target: JobStatusResolved},
		{name: "Claimed to Succeeded is invalid", current: JobStatusClaimed, target: JobStatusSucceeded},
		{name: "Init to Init is invalid", current: JobStatusInit, target: JobStatusInit},
		{name: "Init to Claimed moves backward", current: JobStatusInit, target: JobStatusClaimed},
		{name: "Resolved to Running skips Configured and Ready", current: JobStatusResolved, target: JobStatusRunning},
		{name: "Ready to Succeeded skips Running", current: JobStatusReady, target: JobStatusSucceeded},
		{name: "Running to Invalid is invalid", current: JobStatusRunning, target: JobStatusInvalid},
		{name: "Running to Init moves backward", current: JobStatusRunning, target: JobStatusInit},
		{name: "Succeeded to any state is invalid", current: JobStatusSucceeded, target: JobStatusRunning},
		{name: "Failed to any state is invalid", current: JobStatusFailed, target: JobStatusRunning},
		{name: "Killed to any state is invalid", current: JobStatusKilled, target: JobStatusFailed},
		{name: "Invalid to any state is invalid", current: JobStatusInvalid, target: JobStatusInit},
		{name: "Unspecified cannot transition", current: JobStatusUnspecified, target: JobStatusClaimed},
		{name: "Unknown status cannot transition", current: "PAUSED", target: JobStatusClaimed},
		{name: "Transition to unspecified is invalid", current: JobStatusClaimed, target: JobStatusUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.current.ValidateTransition(tt.target)
			assert.Error(t, err, "expected error for invalid transition from %s to %s", tt.current, tt.target)

			var transitionErr *InvalidTransitionError
			assert.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, tt.current, transitionErr.From)
			assert.Equal(t, tt.target, transitionErr.To)
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusSucceeded, JobStatusFailed, JobStatusKilled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	nonTerminal := []JobStatus{
		JobStatusClaimed, JobStatusInit, JobStatusResolved, JobStatusConfigured,
		JobStatusReady, JobStatusRunning, JobStatusInvalid, JobStatusUnspecified,
	}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestParseJobStatus(t *testing.T) {
	known := []JobStatus{
		JobStatusClaimed, JobStatusInit, JobStatusResolved, JobStatusConfigured,
		JobStatusReady, JobStatusRunning, JobStatusSucceeded, JobStatusFailed,
		JobStatusKilled, JobStatusInvalid,
	}
	for _, s := range known {
		assert.Equal(t, s, ParseJobStatus(s.String()))
	}

	assert.Equal(t, JobStatusUnspecified, ParseJobStatus("NOT_A_STATUS"))
	assert.Equal(t, JobStatusUnspecified, ParseJobStatus(""))
}

func TestJobStatus_EnumForms(t *testing.T) {
	known := []JobStatus{
		JobStatusClaimed, JobStatusInit, JobStatusResolved, JobStatusConfigured,
		JobStatusReady, JobStatusRunning, JobStatusSucceeded, JobStatusFailed,
		JobStatusKilled, JobStatusInvalid,
	}
	for _, s := range known {
		assert.Equal(t, s, JobStatusFromInt32(s.Int32()), "numeric code round trip for %s", s)
		assert.Equal(t, s, ParseJobStatus(s.ProtoString()), "prefixed form round trip for %s", s)
	}

	assert.Equal(t, int32(0), JobStatusUnspecified.Int32())
	assert.Equal(t, "JOB_STATUS_UNSPECIFIED", JobStatusUnspecified.ProtoString())
	assert.Equal(t, "UNSPECIFIED", JobStatusUnspecified.String())
	assert.Equal(t, JobStatusUnspecified, JobStatusFromInt32(99))
}

func TestFinalStatusMessage_TerminalLiterals(t *testing.T) {
	tests := []struct {
		status  JobStatus
		message string
	}{
		{status: JobStatusSucceeded, message: "job finished successfully"},
		{status: JobStatusFailed, message: "job failed"},
		{status: JobStatusKilled, message: "job killed by user"},
	}

	seen := make(map[string]struct{})
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			got := FinalStatusMessage(tt.status)
			assert.Equal(t, tt.message, got)
			assert.NotEmpty(t, got)

			// Each terminal status maps to a distinct literal.
			_, dup := seen[got]
			assert.False(t, dup, "message %q reused across terminal statuses", got)
			seen[got] = struct{}{}
		})
	}
}

func TestFinalStatusMessage_NonTerminalFallsBackToTemplate(t *testing.T) {
	for _, s := range []JobStatus{JobStatusRunning, JobStatusInvalid, JobStatusUnspecified} {
		got := FinalStatusMessage(s)
		assert.Equal(t, "job process completed with final status "+s.String(), got)
	}
}
