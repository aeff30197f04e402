package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
	eventdispatcher "github.com/ahrav/dirigent/internal/infra/event_dispatcher"
	"github.com/ahrav/dirigent/pkg/common/logger"
)

// NewLifecycleActions assembles the standard action set for one job run. The
// returned map is what NewDriver expects: one action per phase, all bound to
// the same registry, supervisor, and job identity.
func NewLifecycleActions(
	registry execution.RegistryClient,
	supervisor execution.ProcessSupervisor,
	jobID string,
	meta execution.AgentMetadata,
	jobsRoot string,
	log *logger.Logger,
) map[State]Action {
	return map[State]Action{
		StateClaimJob:                NewClaimJobAction(registry, jobID, meta, log),
		StateConfigureAgent:          NewConfigureAgentAction(registry, jobID, jobsRoot, log),
		StateResolveJobSpecification: NewResolveJobSpecificationAction(registry, jobID, log),
		StateCreateJobDirectory:      NewCreateJobDirectoryAction(registry, jobID, jobsRoot, log),
		StateSetupJob:                NewSetUpJobAction(registry, jobID, meta, log),
		StateLaunchJob:               NewLaunchJobAction(registry, supervisor, jobID, log),
		StateMonitorJob:              NewMonitorJobAction(registry, supervisor, jobID, log),
		StateCleanupJob:              NewCleanupJobAction(supervisor, jobID, log),
		StateShutdown:                NewShutdownAction(jobID, log),
	}
}

// Runtime runs one job end to end: the lifecycle driver on the calling
// goroutine, the heartbeat emitter in the background, and both kill paths
// (OS signals and kill request events) wired to the process supervisor.
type Runtime struct {
	driver     *Driver
	heartbeat  *HeartbeatEmitter
	dispatcher *eventdispatcher.Dispatcher
	eventBus   events.EventBus
	supervisor execution.ProcessSupervisor
	killer     *KillListener

	logger *logger.Logger
	tracer trace.Tracer
}

// NewRuntime wires the run loop for a single job.
func NewRuntime(
	driver *Driver,
	heartbeat *HeartbeatEmitter,
	dispatcher *eventdispatcher.Dispatcher,
	eventBus events.EventBus,
	supervisor execution.ProcessSupervisor,
	killer *KillListener,
	log *logger.Logger,
	tracer trace.Tracer,
) *Runtime {
	return &Runtime{
		driver:     driver,
		heartbeat:  heartbeat,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		supervisor: supervisor,
		killer:     killer,
		logger:     log.With("component", "runtime"),
		tracer:     tracer,
	}
}

// Run executes the job lifecycle to completion and returns its final status.
// Kill delivery is armed before the first lifecycle phase so a kill arriving
// at any point resolves the run to KILLED through the normal monitoring path.
// Cancelling ctx interrupts the run; the job's outcome is then unknown and
// Run reports an error.
func (r *Runtime) Run(ctx context.Context) (execution.JobStatus, error) {
	ctx, span := r.tracer.Start(ctx, "runtime.run")
	defer span.End()

	r.dispatcher.RegisterHandler(ctx, execution.EventTypeJobKillRequested, r.killer.HandleKillRequested)
	if err := r.eventBus.Subscribe(ctx,
		[]events.EventType{execution.EventTypeJobKillRequested}, r.dispatcher.Dispatch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return execution.JobStatusUnspecified, fmt.Errorf("subscribing to kill requests: %w", err)
	}
	span.AddEvent("kill_path_armed")

	// SIGINT and SIGTERM kill the job process rather than cancelling the run
	// context. The monitor phase then observes the kill and persists KILLED,
	// so an operator's Ctrl-C produces the same recorded outcome as a kill
	// request from the registry.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	go func() {
		for {
			select {
			case sig := <-sigCh:
				r.logger.Warn(ctx, "Received shutdown signal, killing job process", "signal", sig.String())
				r.supervisor.Kill()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	bg, hbCtx := errgroup.WithContext(bgCtx)
	bg.Go(func() error {
		if err := r.heartbeat.Start(hbCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	final, runErr := r.driver.Run(ctx)

	stopBackground()
	if err := bg.Wait(); err != nil {
		r.logger.Warn(ctx, "Background task error during shutdown", "error", err)
	}

	if runErr != nil {
		// An agent failure can leave the child process behind. Kill is
		// idempotent and a no-op when nothing was launched.
		r.supervisor.Kill()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run failed")
		return execution.JobStatusUnspecified, runErr
	}

	span.SetStatus(codes.Ok, "run complete")
	return final, nil
}
