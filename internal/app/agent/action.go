package agent

import (
	"context"
	"fmt"

	"github.com/ahrav/dirigent/internal/domain/execution"
)

// Action is a single lifecycle phase. The Driver validates preconditions,
// executes, then validates postconditions; a non-nil error from any of the
// three routes the machine to the ERROR state. Execute returns the event that
// selects the next transition, so an action can only steer the machine along
// edges the transition table already defines.
//
// Actions that change the job's registry status perform the compare-and-set
// themselves as part of Execute. The Driver never writes status on behalf of
// an action, so a phase that fails before its CAS leaves the registry
// untouched.
type Action interface {
	// ValidatePreconditions checks that the execution context holds what the
	// phase needs before any side effect happens.
	ValidatePreconditions(ctx context.Context, ec *execution.ExecutionContext) error

	// Execute performs the phase's work and returns the event driving the
	// next transition. On error the returned event is ignored.
	Execute(ctx context.Context, ec *execution.ExecutionContext) (Event, error)

	// ValidatePostconditions checks that Execute left the execution context
	// in the shape later phases depend on.
	ValidatePostconditions(ctx context.Context, ec *execution.ExecutionContext) error
}

// InvariantViolationError reports a pre- or postcondition failure in a
// lifecycle phase. It indicates a bug in the agent rather than a job failure.
type InvariantViolationError struct {
	State  State
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated in state %s: %s", e.State, e.Detail)
}

// UnknownTransitionError reports a (state, event) pair the transition table
// has no edge for. The machine stops rather than guessing a next state.
type UnknownTransitionError struct {
	State State
	Event Event
}

func (e *UnknownTransitionError) Error() string {
	return fmt.Sprintf("no transition configured for state %s on event %s", e.State, e.Event)
}

// transitionStatus moves the job from the context's current status to next:
// first the registry compare-and-set, then the local record. Ordering matters;
// if the remote update fails the local view still names the status the
// registry last accepted, which the error path relies on for its best-effort
// FAILED update.
func transitionStatus(
	ctx context.Context,
	registry execution.RegistryClient,
	ec *execution.ExecutionContext,
	jobID string,
	next execution.JobStatus,
	message string,
) error {
	expected := ec.CurrentStatus()
	if err := registry.ChangeJobStatus(ctx, jobID, expected, next, message); err != nil {
		return fmt.Errorf("changing job %s status %s -> %s: %w", jobID, expected, next, err)
	}
	if err := ec.SetCurrentStatus(next); err != nil {
		return err
	}
	return nil
}

// requireStatus fails unless the execution context currently holds status.
func requireStatus(state State, ec *execution.ExecutionContext, status execution.JobStatus) error {
	if cur := ec.CurrentStatus(); cur != status {
		return &InvariantViolationError{
			State:  state,
			Detail: fmt.Sprintf("expected job status %s, have %s", status, cur),
		}
	}
	return nil
}

// requireClaimed fails unless a job claim has been recorded.
func requireClaimed(state State, ec *execution.ExecutionContext) error {
	if !ec.IsClaimed() {
		return &InvariantViolationError{State: state, Detail: "no job claimed"}
	}
	return nil
}

// requireSpecification fails unless a resolved specification is present.
func requireSpecification(state State, ec *execution.ExecutionContext) error {
	if ec.JobSpecification() == nil {
		return &InvariantViolationError{State: state, Detail: "no job specification resolved"}
	}
	return nil
}

// requireJobDirectory fails unless the job directory has been established.
func requireJobDirectory(state State, ec *execution.ExecutionContext) error {
	if ec.JobDirectory() == "" {
		return &InvariantViolationError{State: state, Detail: "no job directory created"}
	}
	return nil
}
