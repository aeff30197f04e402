// Package agent implements the job execution lifecycle: a deterministic state
// machine that claims a job from the registry, prepares its execution
// environment, launches and supervises the job process, and reports the
// outcome back. Each lifecycle phase is an Action; the Driver walks the
// transition table until the run reaches DONE or ERROR.
package agent

// State identifies a phase of the job execution lifecycle.
type State string

const (
	// StateClaimJob is the initial state: atomically claim the job so no
	// other agent runs it.
	StateClaimJob State = "CLAIM_JOB"

	// StateConfigureAgent prepares agent-local prerequisites such as the
	// jobs root directory.
	StateConfigureAgent State = "CONFIGURE_AGENT"

	// StateResolveJobSpecification fetches and validates the resolved
	// execution plan from the registry.
	StateResolveJobSpecification State = "RESOLVE_JOB_SPECIFICATION"

	// StateCreateJobDirectory materializes the job's working directory and
	// log layout on disk.
	StateCreateJobDirectory State = "CREATE_JOB_DIRECTORY"

	// StateSetupJob stages execution metadata into the job directory.
	StateSetupJob State = "SETUP_JOB"

	// StateLaunchJob starts the job's OS process.
	StateLaunchJob State = "LAUNCH_JOB"

	// StateMonitorJob blocks until the process reaches a terminal outcome.
	StateMonitorJob State = "MONITOR_JOB"

	// StateCleanupJob releases per-job resources after the process exits.
	StateCleanupJob State = "CLEANUP_JOB"

	// StateShutdown is the final phase of an orderly run.
	StateShutdown State = "SHUTDOWN"

	// StateDone terminates the run after a complete lifecycle. No action
	// executes in this state.
	StateDone State = "DONE"

	// StateError terminates the run after an unrecoverable failure. No
	// action executes in this state.
	StateError State = "ERROR"
)

// String returns the state's wire representation.
func (s State) String() string { return string(s) }

// Event is the outcome an action reports, driving the next transition.
type Event string

const (
	EventClaimJobComplete       Event = "CLAIM_JOB_COMPLETE"
	EventConfigureAgentComplete Event = "CONFIGURE_AGENT_COMPLETE"
	EventResolveSpecComplete    Event = "RESOLVE_JOB_SPECIFICATION_COMPLETE"
	EventCreateJobDirComplete   Event = "CREATE_JOB_DIRECTORY_COMPLETE"
	EventSetupJobComplete       Event = "SETUP_JOB_COMPLETE"
	EventLaunchJobComplete      Event = "LAUNCH_JOB_COMPLETE"
	EventMonitorJobComplete     Event = "MONITOR_JOB_COMPLETE"
	EventCleanupJobComplete     Event = "CLEANUP_JOB_COMPLETE"
	EventShutdownComplete       Event = "SHUTDOWN_COMPLETE"

	// EventError routes any phase failure to the error state.
	EventError Event = "ERROR"
)

// String returns the event's wire representation.
func (e Event) String() string { return string(e) }

// transitionKey pairs the state an event occurred in with the event itself.
// Transitions are looked up by exact pair; there is no wildcard matching.
type transitionKey struct {
	state State
	event Event
}

// newTransitionTable builds the fixed lifecycle graph. The happy path is a
// single chain from CLAIM_JOB to DONE; every phase also routes EventError to
// the ERROR state. The table never changes after construction, so an
// unconfigured (state, event) pair at runtime means the machine itself is
// broken, not the job.
func newTransitionTable() map[transitionKey]State {
	table := map[transitionKey]State{
		{StateClaimJob, EventClaimJobComplete}:                   StateConfigureAgent,
		{StateConfigureAgent, EventConfigureAgentComplete}:       StateResolveJobSpecification,
		{StateResolveJobSpecification, EventResolveSpecComplete}: StateCreateJobDirectory,
		{StateCreateJobDirectory, EventCreateJobDirComplete}:     StateSetupJob,
		{StateSetupJob, EventSetupJobComplete}:                   StateLaunchJob,
		{StateLaunchJob, EventLaunchJobComplete}:                 StateMonitorJob,
		{StateMonitorJob, EventMonitorJobComplete}:               StateCleanupJob,
		{StateCleanupJob, EventCleanupJobComplete}:               StateShutdown,
		{StateShutdown, EventShutdownComplete}:                   StateDone,
	}

	for _, st := range []State{
		StateClaimJob,
		StateConfigureAgent,
		StateResolveJobSpecification,
		StateCreateJobDirectory,
		StateSetupJob,
		StateLaunchJob,
		StateMonitorJob,
		StateCleanupJob,
		StateShutdown,
	} {
		table[transitionKey{st, EventError}] = StateError
	}

	return table
}
