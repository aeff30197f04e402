// Package memory provides an in-memory implementation of the job registry
// client. It offers a lightweight, non-persistent registry suitable for
// testing and development environments where no registry service is running.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/dirigent/internal/domain/execution"
)

// jobRecord is the registry's view of one job: its resolved specification plus
// the authoritative status fields updated through compare-and-set.
type jobRecord struct {
	spec      execution.JobSpecification
	status    execution.JobStatus
	message   string
	claimedBy *execution.AgentMetadata
	updatedAt time.Time
}

// Registry provides an in-memory implementation of the
// execution.RegistryClient interface with the same optimistic concurrency
// semantics as the real registry service.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*jobRecord
}

var _ execution.RegistryClient = (*Registry)(nil)

// NewRegistry creates an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*jobRecord)}
}

// SeedJob registers a job awaiting claim. Intended for tests and local
// development setups.
func (r *Registry) SeedJob(spec execution.JobSpecification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[spec.JobID] = &jobRecord{
		spec:      spec,
		status:    execution.JobStatusUnspecified,
		updatedAt: time.Now(),
	}
}

// ClaimJob atomically claims the job for the calling agent and returns its
// specification. The registry records CLAIMED as the job's status.
func (r *Registry) ClaimJob(ctx context.Context, jobID string, meta execution.AgentMetadata) (*execution.JobSpecification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.jobs[jobID]
	if !ok {
		return nil, &execution.JobNotFoundError{JobID: jobID}
	}
	if record.claimedBy != nil {
		return nil, &execution.JobAlreadyClaimedError{JobID: jobID}
	}

	record.claimedBy = &meta
	record.status = execution.JobStatusClaimed
	record.message = ""
	record.updatedAt = time.Now()

	spec := record.spec
	return &spec, nil
}

// ChangeJobStatus performs an optimistic compare-and-set of the job's status.
// The update applies only if the stored status still equals expected and the
// change is declared in the lifecycle adjacency.
func (r *Registry) ChangeJobStatus(ctx context.Context, jobID string, expected, next execution.JobStatus, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.jobs[jobID]
	if !ok {
		return &execution.JobNotFoundError{JobID: jobID}
	}
	if record.status != expected {
		return &execution.StaleStatusError{JobID: jobID, Expected: expected, Actual: record.status}
	}
	if err := expected.ValidateTransition(next); err != nil {
		return err
	}

	record.status = next
	record.message = message
	record.updatedAt = time.Now()
	return nil
}

// GetJobSpecification fetches the stored specification for a job.
func (r *Registry) GetJobSpecification(ctx context.Context, jobID string) (*execution.JobSpecification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.jobs[jobID]
	if !ok {
		return nil, &execution.JobNotFoundError{JobID: jobID}
	}

	spec := record.spec
	return &spec, nil
}

// JobState returns the job's current status and message for assertions in
// tests. The boolean reports whether the job exists.
func (r *Registry) JobState(jobID string) (execution.JobStatus, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.jobs[jobID]
	if !ok {
		return execution.JobStatusUnspecified, "", false
	}
	return record.status, record.message, true
}

// ForceStatus overwrites a job's status bypassing compare-and-set, simulating
// another writer racing ahead of the agent.
func (r *Registry) ForceStatus(jobID string, status execution.JobStatus, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.jobs[jobID]; ok {
		record.status = status
		record.message = message
		record.updatedAt = time.Now()
	}
}
