package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

func newTestClient(baseURL string) *Client {
	return NewClient(
		Config{BaseURL: baseURL, RequestsPerSecond: 1000, Burst: 100},
		logger.Noop(),
		noop.NewTracerProvider().Tracer("test"),
	)
}

func testMeta(t *testing.T) execution.AgentMetadata {
	t.Helper()
	meta, err := execution.NewAgentMetadata("test")
	require.NoError(t, err)
	return meta
}

func TestClient_ClaimJob(t *testing.T) {
	spec := execution.JobSpecification{
		JobID:       "job-1",
		CommandArgs: []string{"/bin/echo", "hello"},
		Command:     execution.ResourceRef{ID: "cmd-1"},
		Cluster:     execution.ResourceRef{ID: "cluster-1"},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/jobs/job-1/claim", r.URL.Path)

		var req claimRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.AgentID)
		assert.NotEmpty(t, req.Hostname)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(spec))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).ClaimJob(context.Background(), "job-1", testMeta(t))
	require.NoError(t, err)
	assert.Equal(t, spec, *got)
}

func TestClient_ClaimJob_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    func(t *testing.T, err error)
	}{
		{
			name:       "404 maps to JobNotFoundError",
			statusCode: http.StatusNotFound,
			wantErr: func(t *testing.T, err error) {
				var notFound *execution.JobNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, "job-1", notFound.JobID)
			},
		},
		{
			name:       "409 maps to JobAlreadyClaimedError",
			statusCode: http.StatusConflict,
			wantErr: func(t *testing.T, err error) {
				var claimed *execution.JobAlreadyClaimedError
				require.ErrorAs(t, err, &claimed)
			},
		},
		{
			name:       "423 maps to JobAlreadyClaimedError",
			statusCode: http.StatusLocked,
			wantErr: func(t *testing.T, err error) {
				var claimed *execution.JobAlreadyClaimedError
				require.ErrorAs(t, err, &claimed)
			},
		},
		{
			name:       "500 maps to TransportError",
			statusCode: http.StatusInternalServerError,
			wantErr: func(t *testing.T, err error) {
				var transport *execution.TransportError
				require.ErrorAs(t, err, &transport)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).ClaimJob(context.Background(), "job-1", testMeta(t))
			require.Error(t, err)
			tt.wantErr(t, err)
		})
	}
}

func TestClient_ChangeJobStatus(t *testing.T) {
	var received changeStatusRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/jobs/job-1/status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusSucceeded, execution.StatusMessageSucceeded)
	require.NoError(t, err)

	assert.Equal(t, "RUNNING", received.ExpectedStatus)
	assert.Equal(t, "SUCCEEDED", received.NewStatus)
	assert.Equal(t, "job finished successfully", received.Message)
}

func TestClient_ChangeJobStatus_StaleStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		require.NoError(t, json.NewEncoder(w).Encode(conflictResponse{ActualStatus: "KILLED"}))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusSucceeded, "")
	require.Error(t, err)

	var stale *execution.StaleStatusError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, execution.JobStatusRunning, stale.Expected)
	assert.Equal(t, execution.JobStatusKilled, stale.Actual)
}

func TestClient_ChangeJobStatus_InvalidTransition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusInit, "")
	require.Error(t, err)

	var invalid *execution.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, execution.JobStatusRunning, invalid.From)
	assert.Equal(t, execution.JobStatusInit, invalid.To)
}

func TestClient_ChangeJobStatus_ServerFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusSucceeded, "")
	require.Error(t, err)

	var transport *execution.TransportError
	assert.ErrorAs(t, err, &transport)
}

func TestClient_NetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	err := newTestClient(srv.URL).ChangeJobStatus(context.Background(), "job-1",
		execution.JobStatusRunning, execution.JobStatusSucceeded, "")
	require.Error(t, err)

	var transport *execution.TransportError
	assert.ErrorAs(t, err, &transport)
}

func TestClient_GetJobSpecification(t *testing.T) {
	spec := execution.JobSpecification{
		JobID:       "job-1",
		CommandArgs: []string{"/bin/true"},
		Command:     execution.ResourceRef{ID: "cmd-1"},
		Cluster:     execution.ResourceRef{ID: "cluster-1"},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/jobs/job-1/specification", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(spec))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).GetJobSpecification(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, spec, *got)
}

func TestClient_GetJobSpecification_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetJobSpecification(context.Background(), "missing")
	require.Error(t, err)

	var notFound *execution.JobNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
