package execution

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate provides struct-level validation for specifications resolved from
// the registry.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ResourceRef identifies a resource (command, cluster, application) from the
// resource catalog that a job specification depends on.
type ResourceRef struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// JobSpecification is the resolved execution plan for a single job: the fully
// materialized command line, environment, resource references, and placement
// details the agent needs to run the job's process. It is produced by the
// registry during resolution and treated as immutable by the agent.
type JobSpecification struct {
	JobID string `json:"job_id" yaml:"job_id" validate:"required"`

	// CommandArgs is the executable and fixed arguments from the command
	// resource. JobArgs are the user-supplied arguments appended after them.
	CommandArgs []string `json:"command_args" yaml:"command_args" validate:"required,min=1"`
	JobArgs     []string `json:"job_args,omitempty" yaml:"job_args,omitempty"`

	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// JobDirectory is the working directory the registry placed the job in.
	// When empty the agent derives one from its configured jobs root.
	JobDirectory string `json:"job_directory,omitempty" yaml:"job_directory,omitempty"`

	Command      ResourceRef   `json:"command" yaml:"command" validate:"required"`
	Cluster      ResourceRef   `json:"cluster" yaml:"cluster" validate:"required"`
	Applications []ResourceRef `json:"applications,omitempty" yaml:"applications,omitempty" validate:"dive"`

	// TimeoutSeconds bounds the job's wall-clock runtime. Nil means no limit.
	// A timeout expiry kills the process; the outcome is reported as KILLED.
	TimeoutSeconds *int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`

	// Interactive attaches the job process to the agent's own stdout/stderr
	// instead of redirecting into the job directory's log files.
	Interactive bool `json:"interactive,omitempty" yaml:"interactive,omitempty"`
}

// Validate checks the specification for structural completeness. A
// specification that fails validation must never be launched.
func (s *JobSpecification) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid job specification: %w", err)
	}
	return nil
}

// ExecutableArgs returns the full argv for the job process: the command's
// fixed arguments followed by the user-supplied job arguments.
func (s *JobSpecification) ExecutableArgs() []string {
	args := make([]string, 0, len(s.CommandArgs)+len(s.JobArgs))
	args = append(args, s.CommandArgs...)
	args = append(args, s.JobArgs...)
	return args
}

// AgentMetadata identifies the agent instance claiming a job. The registry
// records it with the claim so operators can locate the worker running a job.
type AgentMetadata struct {
	AgentID  uuid.UUID `json:"agent_id"`
	Hostname string    `json:"hostname"`
	Version  string    `json:"version"`
	PID      int       `json:"pid"`
}

// NewAgentMetadata builds metadata for this agent process, deriving the
// hostname and pid from the running environment.
func NewAgentMetadata(version string) (AgentMetadata, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return AgentMetadata{}, fmt.Errorf("resolving agent hostname: %w", err)
	}

	return AgentMetadata{
		AgentID:  uuid.New(),
		Hostname: hostname,
		Version:  version,
		PID:      os.Getpid(),
	}, nil
}
