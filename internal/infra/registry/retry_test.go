package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// flakyRegistry fails a configurable number of times before succeeding.
type flakyRegistry struct {
	failures int
	err      error
	calls    int
	spec     *execution.JobSpecification
}

func (f *flakyRegistry) next() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyRegistry) ClaimJob(context.Context, string, execution.AgentMetadata) (*execution.JobSpecification, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.spec, nil
}

func (f *flakyRegistry) ChangeJobStatus(context.Context, string, execution.JobStatus, execution.JobStatus, string) error {
	return f.next()
}

func (f *flakyRegistry) GetJobSpecification(context.Context, string) (*execution.JobSpecification, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.spec, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func TestRetryingClient_RetriesTransportFailures(t *testing.T) {
	inner := &flakyRegistry{
		failures: 2,
		err:      &execution.TransportError{Op: "change job status", Err: errors.New("connection refused")},
	}
	client := NewRetryingClient(inner, fastRetryConfig(), logger.Noop())

	err := client.ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusSucceeded, execution.StatusMessageSucceeded)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingClient_DoesNotRetryStaleStatus(t *testing.T) {
	inner := &flakyRegistry{
		failures: 10,
		err: &execution.StaleStatusError{
			JobID:    "job-1",
			Expected: execution.JobStatusRunning,
			Actual:   execution.JobStatusKilled,
		},
	}
	client := NewRetryingClient(inner, fastRetryConfig(), logger.Noop())

	err := client.ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusSucceeded, "")
	require.Error(t, err)

	var stale *execution.StaleStatusError
	assert.ErrorAs(t, err, &stale, "stale status must surface unchanged")
	assert.Equal(t, 1, inner.calls, "fatal errors must not be retried")
}

func TestRetryingClient_DoesNotRetryInvalidTransition(t *testing.T) {
	inner := &flakyRegistry{
		failures: 10,
		err:      &execution.InvalidTransitionError{From: execution.JobStatusRunning, To: execution.JobStatusInit},
	}
	client := NewRetryingClient(inner, fastRetryConfig(), logger.Noop())

	err := client.ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusInit, "")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingClient_ClaimJobReturnsSpecificationAfterRetry(t *testing.T) {
	spec := &execution.JobSpecification{JobID: "job-1", CommandArgs: []string{"/bin/true"}}
	inner := &flakyRegistry{
		failures: 1,
		err:      &execution.TransportError{Op: "claim job", Err: errors.New("timeout")},
		spec:     spec,
	}
	client := NewRetryingClient(inner, fastRetryConfig(), logger.Noop())

	meta, err := execution.NewAgentMetadata("test")
	require.NoError(t, err)

	got, err := client.ClaimJob(context.Background(), "job-1", meta)
	require.NoError(t, err)
	assert.Same(t, spec, got)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingClient_ContextCancellationStopsRetrying(t *testing.T) {
	inner := &flakyRegistry{
		failures: 1 << 30,
		err:      &execution.TransportError{Op: "get job specification", Err: errors.New("unreachable")},
	}
	cfg := RetryConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxElapsedTime:  time.Minute,
	}
	client := NewRetryingClient(inner, cfg, logger.Noop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetJobSpecification(ctx, "job-1")
	require.Error(t, err)
	assert.Less(t, inner.calls, 20, "cancellation must bound the retry loop")
}

func TestRetryingClient_GivesUpAfterMaxElapsedTime(t *testing.T) {
	inner := &flakyRegistry{
		failures: 1 << 30,
		err:      &execution.TransportError{Op: "change job status", Err: errors.New("unreachable")},
	}
	cfg := RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  30 * time.Millisecond,
	}
	client := NewRetryingClient(inner, cfg, logger.Noop())

	err := client.ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusSucceeded, "")
	require.Error(t, err)

	var transport *execution.TransportError
	assert.ErrorAs(t, err, &transport, "the last transport error surfaces to the caller")
}
