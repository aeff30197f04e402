package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/dirigent/internal/domain/execution"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// failJobTimeout bounds the single best-effort FAILED update attempted after
// the machine halts in the error state.
const failJobTimeout = 5 * time.Second

// Driver walks the lifecycle state machine: look up the action for the
// current state, run it, and follow the transition its event selects, until
// the machine reaches DONE or ERROR. The driver is the single error boundary
// of the lifecycle; actions surface errors, the driver decides what they mean
// for the run.
//
// The driver never writes job status itself except for one best-effort FAILED
// update when the run halts in ERROR while the registry would otherwise show
// the job stuck mid-lifecycle.
type Driver struct {
	table   map[transitionKey]State
	actions map[State]Action
	ec      *execution.ExecutionContext

	registry execution.RegistryClient
	jobID    string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics AgentMetrics
}

// NewDriver builds a driver over the given actions. The actions map must hold
// one action per lifecycle phase; states without an action halt the machine
// in ERROR if reached.
func NewDriver(
	actions map[State]Action,
	ec *execution.ExecutionContext,
	registry execution.RegistryClient,
	jobID string,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics AgentMetrics,
) *Driver {
	return &Driver{
		table:    newTransitionTable(),
		actions:  actions,
		ec:       ec,
		registry: registry,
		jobID:    jobID,
		logger:   log.With("component", "driver", "job_id", jobID),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// Run executes the lifecycle from CLAIM_JOB until the machine terminates.
// On DONE it returns the job's final status and a nil error. On ERROR it
// returns JobStatusUnspecified and the error that halted the machine; the
// job's true outcome is unknown to this agent.
func (d *Driver) Run(ctx context.Context) (execution.JobStatus, error) {
	ctx, span := d.tracer.Start(ctx, "driver.run",
		trace.WithAttributes(attribute.String("job_id", d.jobID)))
	defer span.End()

	state := StateClaimJob
	for state != StateDone && state != StateError {
		event := d.executePhase(ctx, state)

		next, ok := d.table[transitionKey{state, event}]
		if !ok {
			err := &UnknownTransitionError{State: state, Event: event}
			d.ec.RecordError(err)
			d.logger.Error(ctx, "Lifecycle halted on unknown transition",
				"state", state.String(), "event", event.String())
			span.RecordError(err)
			state = StateError
			continue
		}

		d.logger.Debug(ctx, "State transition",
			"from", state.String(), "event", event.String(), "to", next.String())
		if d.metrics != nil {
			d.metrics.IncStateTransition(ctx, state, event, next)
		}
		state = next
	}

	if state == StateError {
		d.failJobBestEffort(ctx)
		if d.metrics != nil {
			d.metrics.IncAgentError(ctx)
		}

		err := d.ec.LastError()
		if err == nil {
			err = errors.New("lifecycle halted in error state with no recorded cause")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lifecycle failed")
		return execution.JobStatusUnspecified, err
	}

	final, ok := d.ec.FinalStatus()
	if !ok {
		err := &InvariantViolationError{State: StateDone, Detail: "lifecycle completed without a final status"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lifecycle failed")
		return execution.JobStatusUnspecified, err
	}

	if d.metrics != nil {
		d.metrics.IncJobFinalStatus(ctx, final)
	}
	span.SetAttributes(attribute.String("final_status", final.String()))
	span.SetStatus(codes.Ok, "lifecycle complete")
	return final, nil
}

// executePhase runs one action through its precondition, execute,
// postcondition sequence. Any failure records the error on the execution
// context and maps to EventError; the returned event otherwise comes from the
// action itself.
func (d *Driver) executePhase(ctx context.Context, state State) Event {
	ctx, span := d.tracer.Start(ctx, "driver.execute_phase",
		trace.WithAttributes(attribute.String("state", state.String())))
	defer span.End()

	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.ObservePhaseDuration(ctx, state, time.Since(start))
		}
	}()

	action, ok := d.actions[state]
	if !ok {
		err := fmt.Errorf("no action registered for state %s", state)
		d.ec.RecordError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing action")
		return EventError
	}

	if err := action.ValidatePreconditions(ctx, d.ec); err != nil {
		return d.failPhase(ctx, span, state, "precondition", err)
	}
	span.AddEvent("preconditions_validated")

	event, err := action.Execute(ctx, d.ec)
	if err != nil {
		return d.failPhase(ctx, span, state, "execute", err)
	}
	span.AddEvent("action_executed")

	if err := action.ValidatePostconditions(ctx, d.ec); err != nil {
		return d.failPhase(ctx, span, state, "postcondition", err)
	}

	span.SetStatus(codes.Ok, "phase complete")
	return event
}

// failPhase records a phase failure and routes the machine to ERROR.
func (d *Driver) failPhase(ctx context.Context, span trace.Span, state State, stage string, err error) Event {
	d.ec.RecordError(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" failed")

	var violation *InvariantViolationError
	if errors.As(err, &violation) && d.metrics != nil {
		d.metrics.IncInvariantViolation(ctx, state)
	}

	d.logger.Error(ctx, "Lifecycle phase failed",
		"state", state.String(), "stage", stage, "error", err)
	return EventError
}

// failJobBestEffort attempts one FAILED update so the registry does not show
// the job stuck mid-lifecycle after an agent failure. The attempt is skipped
// when no job was claimed, when a final status was already persisted, or when
// the local view is already terminal. The update is advisory; a failure here
// is logged and swallowed because the agent is exiting with an error either
// way.
func (d *Driver) failJobBestEffort(ctx context.Context) {
	if !d.ec.IsClaimed() {
		return
	}
	if _, ok := d.ec.FinalStatus(); ok {
		return
	}
	cur := d.ec.CurrentStatus()
	if cur.IsTerminal() {
		return
	}

	// The run's context may already be cancelled; the terminal update still
	// gets its one bounded attempt.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failJobTimeout)
	defer cancel()

	jobID := d.ec.ClaimedJobID()
	err := d.registry.ChangeJobStatus(ctx, jobID, cur, execution.JobStatusFailed, execution.StatusMessageAgentError)
	if err != nil {
		d.logger.Warn(ctx, "Best-effort FAILED update not applied",
			"previous_status", cur.String(), "error", err)
		return
	}

	d.logger.Info(ctx, "Job marked FAILED after agent error", "previous_status", cur.String())
}
