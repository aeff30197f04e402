package execution

import "fmt"

// ExecutionContext is the single mutable record for one job run. The driving
// goroutine owns it exclusively: every lifecycle phase reads and writes it in
// sequence and nothing else holds a reference, so it is not safe for
// concurrent use. External kill requests synchronize through the process
// supervisor, never through this record.
type ExecutionContext struct {
	claimedJobID  string
	currentStatus JobStatus
	finalStatus   JobStatus
	spec          *JobSpecification
	jobDirectory  string
	lastErr       error
}

// NewExecutionContext creates the empty record for a fresh job run. The
// current status is unset until the claim phase records CLAIMED.
func NewExecutionContext() *ExecutionContext { return new(ExecutionContext) }

// ClaimedJobID returns the id of the claimed job, or the empty string if no
// claim has been recorded yet.
func (c *ExecutionContext) ClaimedJobID() string { return c.claimedJobID }

// IsClaimed reports whether a job claim has been recorded.
func (c *ExecutionContext) IsClaimed() bool { return c.claimedJobID != "" }

// RecordClaim stores the claimed job id. The claim is write-once: recording a
// second claim indicates a driver bug and fails.
func (c *ExecutionContext) RecordClaim(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("cannot record claim: empty job id")
	}
	if c.claimedJobID != "" {
		return fmt.Errorf("cannot record claim for job %s: job %s already claimed", jobID, c.claimedJobID)
	}
	c.claimedJobID = jobID
	return nil
}

// CurrentStatus returns the job status as last recorded by a lifecycle phase.
// The zero value means no phase has recorded a status yet.
func (c *ExecutionContext) CurrentStatus() JobStatus { return c.currentStatus }

// SetCurrentStatus records the job's new status. The first recorded status is
// unconstrained; every later change must follow the lifecycle adjacency, and
// once the current status is terminal it is frozen. A violation indicates a
// driver bug and fails.
func (c *ExecutionContext) SetCurrentStatus(status JobStatus) error {
	if c.currentStatus.IsTerminal() {
		return fmt.Errorf("cannot set status to %s: current status %s is terminal", status, c.currentStatus)
	}
	if c.currentStatus != JobStatusUnspecified {
		if err := c.currentStatus.ValidateTransition(status); err != nil {
			return err
		}
	}
	c.currentStatus = status
	return nil
}

// FinalStatus returns the terminal outcome of the job if one has been
// recorded.
func (c *ExecutionContext) FinalStatus() (JobStatus, bool) {
	if c.finalStatus == "" {
		return JobStatusUnspecified, false
	}
	return c.finalStatus, true
}

// SetFinalStatus records the job's terminal outcome. It is write-once, must be
// a terminal status, and must equal the current status at the time it is set.
func (c *ExecutionContext) SetFinalStatus(status JobStatus) error {
	if c.finalStatus != "" {
		return fmt.Errorf("cannot set final status to %s: final status %s already recorded", status, c.finalStatus)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("cannot set final status to non-terminal status %s", status)
	}
	if status != c.currentStatus {
		return fmt.Errorf("cannot set final status to %s: current status is %s", status, c.currentStatus)
	}
	c.finalStatus = status
	return nil
}

// JobSpecification returns the resolved specification, or nil if the resolve
// phase has not completed.
func (c *ExecutionContext) JobSpecification() *JobSpecification { return c.spec }

// SetJobSpecification stores the resolved specification. Write-once: resolving
// twice indicates a driver bug and fails.
func (c *ExecutionContext) SetJobSpecification(spec *JobSpecification) error {
	if spec == nil {
		return fmt.Errorf("cannot set nil job specification")
	}
	if c.spec != nil {
		return fmt.Errorf("cannot set job specification: specification already resolved")
	}
	c.spec = spec
	return nil
}

// JobDirectory returns the job's working directory, or the empty string if it
// has not been created yet.
func (c *ExecutionContext) JobDirectory() string { return c.jobDirectory }

// SetJobDirectory records the created job directory. Write-once.
func (c *ExecutionContext) SetJobDirectory(path string) error {
	if path == "" {
		return fmt.Errorf("cannot set empty job directory")
	}
	if c.jobDirectory != "" {
		return fmt.Errorf("cannot set job directory to %s: directory %s already set", path, c.jobDirectory)
	}
	c.jobDirectory = path
	return nil
}

// LastError returns the most recent fatal error captured during the run, if
// any.
func (c *ExecutionContext) LastError() error { return c.lastErr }

// RecordError captures a fatal error for diagnostics. Later errors overwrite
// earlier ones; the driver surfaces the last one captured.
func (c *ExecutionContext) RecordError(err error) { c.lastErr = err }
