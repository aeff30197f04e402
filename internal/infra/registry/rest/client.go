// Package rest implements the job registry client against the registry
// service's HTTP API. All status changes go through the registry's optimistic
// concurrency check; the client maps HTTP failures onto the domain's error
// taxonomy so callers can distinguish fatal divergence from retryable
// transport trouble.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

const defaultTimeout = 30 * time.Second

// Config holds the connection settings for the registry service.
type Config struct {
	// BaseURL is the root of the registry API, e.g. "http://registry:8080".
	BaseURL string

	// Timeout bounds each HTTP request. Zero means the default of 30s.
	Timeout time.Duration

	// RequestsPerSecond and Burst configure client-side rate limiting so a
	// tight retry loop above this client cannot hammer the registry.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the job registry service over HTTP.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *common.RateLimiter

	log    *logger.Logger
	tracer trace.Tracer
}

var _ execution.RegistryClient = (*Client)(nil)

// NewClient creates a registry client with rate limiting and traced transport.
func NewClient(cfg Config, log *logger.Logger, tracer trace.Tracer) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		rateLimiter: common.NewRateLimiter(rps, burst),
		log:         log.With("component", "registry_rest_client"),
		tracer:      tracer,
	}
}

// claimRequest is the payload for claiming a job.
type claimRequest struct {
	AgentID  string `json:"agent_id"`
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	PID      int    `json:"pid"`
}

// changeStatusRequest is the payload for an optimistic status update.
type changeStatusRequest struct {
	ExpectedStatus string `json:"expected_status"`
	NewStatus      string `json:"new_status"`
	Message        string `json:"message"`
}

// conflictResponse carries the registry's authoritative status when an update
// loses the optimistic concurrency check.
type conflictResponse struct {
	ActualStatus string `json:"actual_status"`
}

// ClaimJob atomically claims the job for this agent and returns its resolved
// specification.
func (c *Client) ClaimJob(ctx context.Context, jobID string, meta execution.AgentMetadata) (*execution.JobSpecification, error) {
	ctx, span := c.tracer.Start(ctx, "registry_rest_client.claim_job",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("job_id", jobID),
			attribute.String("agent_id", meta.AgentID.String()),
		))
	defer span.End()

	payload := claimRequest{
		AgentID:  meta.AgentID.String(),
		Hostname: meta.Hostname,
		Version:  meta.Version,
		PID:      meta.PID,
	}

	url := fmt.Sprintf("%s/api/v1/jobs/%s/claim", c.baseURL, jobID)
	resp, err := c.doJSON(ctx, http.MethodPost, url, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim request failed")
		return nil, &execution.TransportError{Op: "claim job", Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		err := &execution.JobNotFoundError{JobID: jobID}
		span.RecordError(err)
		span.SetStatus(codes.Error, "job not found")
		return nil, err
	case http.StatusConflict, http.StatusLocked:
		err := &execution.JobAlreadyClaimedError{JobID: jobID}
		span.RecordError(err)
		span.SetStatus(codes.Error, "job already claimed")
		return nil, err
	default:
		err := c.unexpectedStatus("claim job", resp)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected claim response")
		return nil, err
	}

	var spec execution.JobSpecification
	if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode specification")
		return nil, fmt.Errorf("failed to decode job specification: %w", err)
	}

	span.SetStatus(codes.Ok, "job claimed")
	c.log.Info(ctx, "claimed job", "job_id", jobID)
	return &spec, nil
}

// ChangeJobStatus performs an optimistic compare-and-set of the job's status
// against the registry.
func (c *Client) ChangeJobStatus(ctx context.Context, jobID string, expected, next execution.JobStatus, message string) error {
	ctx, span := c.tracer.Start(ctx, "registry_rest_client.change_job_status",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("job_id", jobID),
			attribute.String("status.expected", expected.String()),
			attribute.String("status.new", next.String()),
		))
	defer span.End()

	payload := changeStatusRequest{
		ExpectedStatus: expected.String(),
		NewStatus:      next.String(),
		Message:        message,
	}

	url := fmt.Sprintf("%s/api/v1/jobs/%s/status", c.baseURL, jobID)
	resp, err := c.doJSON(ctx, http.MethodPut, url, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status update request failed")
		return &execution.TransportError{Op: "change job status", Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		span.SetStatus(codes.Ok, "status updated")
		c.log.Info(ctx, "job status updated", "job_id", jobID, "from", expected, "to", next, "message", message)
		return nil
	case http.StatusConflict:
		var conflict conflictResponse
		// Best effort: the body may be absent on older registry versions.
		_ = json.NewDecoder(resp.Body).Decode(&conflict)
		err := &execution.StaleStatusError{
			JobID:    jobID,
			Expected: expected,
			Actual:   execution.ParseJobStatus(conflict.ActualStatus),
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "stale status")
		return err
	case http.StatusBadRequest:
		err := &execution.InvalidTransitionError{From: expected, To: next}
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid transition")
		return err
	case http.StatusNotFound:
		err := &execution.JobNotFoundError{JobID: jobID}
		span.RecordError(err)
		span.SetStatus(codes.Error, "job not found")
		return err
	default:
		err := c.unexpectedStatus("change job status", resp)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status response")
		return err
	}
}

// GetJobSpecification fetches the resolved specification for a job.
func (c *Client) GetJobSpecification(ctx context.Context, jobID string) (*execution.JobSpecification, error) {
	ctx, span := c.tracer.Start(ctx, "registry_rest_client.get_job_specification",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	url := fmt.Sprintf("%s/api/v1/jobs/%s/specification", c.baseURL, jobID)
	resp, err := c.doJSON(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "specification request failed")
		return nil, &execution.TransportError{Op: "get job specification", Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		err := &execution.JobNotFoundError{JobID: jobID}
		span.RecordError(err)
		span.SetStatus(codes.Error, "job not found")
		return nil, err
	default:
		err := c.unexpectedStatus("get job specification", resp)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected specification response")
		return nil, err
	}

	var spec execution.JobSpecification
	if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode specification")
		return nil, fmt.Errorf("failed to decode job specification: %w", err)
	}

	span.SetStatus(codes.Ok, "specification fetched")
	return &spec, nil
}

// doJSON sends one JSON request, honoring the client-side rate limit.
func (c *Client) doJSON(ctx context.Context, method, url string, payload any) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// unexpectedStatus folds a response outside the expected set into either a
// retryable transport error (5xx) or a plain fatal error.
func (c *Client) unexpectedStatus(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("unexpected response from registry (status: %d): %s", resp.StatusCode, string(data))
	if resp.StatusCode >= http.StatusInternalServerError {
		return &execution.TransportError{Op: op, Err: err}
	}
	return err
}
