// Package registry provides decorators that layer operational policy on top
// of a job registry client. Retry lives here rather than in the state machine
// so transition semantics stay free of hidden loops.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxElapsedTime  = 2 * time.Minute
)

// RetryConfig bounds the exponential backoff applied to transport failures.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// RetryingClient wraps a registry client with bounded exponential backoff.
// Only transport failures are retried: a stale status or an invalid transition
// signals state divergence, and repeating those blindly would corrupt the
// job's transition ordering. Claims are safe to repeat because the registry
// treats a repeated claim from the same agent as idempotent.
type RetryingClient struct {
	inner execution.RegistryClient
	cfg   RetryConfig
	log   *logger.Logger
}

var _ execution.RegistryClient = (*RetryingClient)(nil)

// NewRetryingClient decorates inner with retry-on-transport-failure behavior.
func NewRetryingClient(inner execution.RegistryClient, cfg RetryConfig, log *logger.Logger) *RetryingClient {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = defaultMaxElapsedTime
	}
	return &RetryingClient{
		inner: inner,
		cfg:   cfg,
		log:   log.With("component", "registry_retry"),
	}
}

// ClaimJob claims the job, retrying transport failures.
func (c *RetryingClient) ClaimJob(ctx context.Context, jobID string, meta execution.AgentMetadata) (*execution.JobSpecification, error) {
	var spec *execution.JobSpecification
	err := c.retry(ctx, "claim_job", func() error {
		var err error
		spec, err = c.inner.ClaimJob(ctx, jobID, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// ChangeJobStatus applies the optimistic status update, retrying transport
// failures. The compare-and-set expectation makes the repeat safe: a retry of
// an update that actually landed fails with StaleStatusError instead of
// applying twice.
func (c *RetryingClient) ChangeJobStatus(ctx context.Context, jobID string, expected, next execution.JobStatus, message string) error {
	return c.retry(ctx, "change_job_status", func() error {
		return c.inner.ChangeJobStatus(ctx, jobID, expected, next, message)
	})
}

// GetJobSpecification fetches the specification, retrying transport failures.
func (c *RetryingClient) GetJobSpecification(ctx context.Context, jobID string) (*execution.JobSpecification, error) {
	var spec *execution.JobSpecification
	err := c.retry(ctx, "get_job_specification", func() error {
		var err error
		spec, err = c.inner.GetJobSpecification(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

func (c *RetryingClient) retry(ctx context.Context, op string, fn func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.cfg.InitialInterval
	expBackoff.MaxElapsedTime = c.cfg.MaxElapsedTime
	if c.cfg.MaxInterval > 0 {
		expBackoff.MaxInterval = c.cfg.MaxInterval
	}

	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var transportErr *execution.TransportError
		if errors.As(err, &transportErr) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn(ctx, "registry call failed, will retry", "operation", op, "wait", wait.String(), "err", err)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(expBackoff, ctx), notify)
}
