package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/dirigent/internal/api/debug"
	"github.com/ahrav/dirigent/internal/app/agent"
	"github.com/ahrav/dirigent/internal/config/fileloader"
	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
	eventdispatcher "github.com/ahrav/dirigent/internal/infra/event_dispatcher"
	"github.com/ahrav/dirigent/internal/infra/eventbus/kafka"
	"github.com/ahrav/dirigent/internal/infra/eventbus/memory"
	"github.com/ahrav/dirigent/internal/infra/process"
	"github.com/ahrav/dirigent/internal/infra/registry"
	"github.com/ahrav/dirigent/internal/infra/registry/rest"
	"github.com/ahrav/dirigent/pkg/common/logger"
	"github.com/ahrav/dirigent/pkg/common/otel"
)

var build = "develop"

const (
	serviceType = "agent"
)

// The agent's exit code reports the job's outcome to whoever launched the
// process. A job that ran and failed is a successful agent run; only an agent
// fault exits with exitAgentError.
const (
	exitSucceeded  = 0
	exitAgentError = 1
	exitJobFailed  = 2
	exitJobKilled  = 3
)

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	var log *logger.Logger

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			// Add any error-specific attributes.
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			// Output the error event with valid JSON details.
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("AGENT-%s", hostname)
	metadata := map[string]string{
		"service":   svcName,
		"hostname":  hostname,
		"pod":       os.Getenv("POD_NAME"),
		"namespace": os.Getenv("POD_NAMESPACE"),
		"app":       serviceType,
	}

	// TODO: Use env var to set log level.
	log = logger.NewWithMetadata(os.Stdout, logger.LevelDebug, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()

	final, err := run(ctx, log, hostname)
	if err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(exitAgentError)
	}

	log.Info(ctx, "shutdown", "status", "agent exiting", "final_status", final)
	os.Exit(exitCodeFor(final))
}

func run(ctx context.Context, log *logger.Logger, hostname string) (execution.JobStatus, error) {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration
	cfg, err := fileloader.NewFileLoader(os.Getenv("DIRIGENT_CONFIG_FILE")).Load(ctx)
	if err != nil {
		return execution.JobStatusUnspecified, fmt.Errorf("loading configuration: %w", err)
	}

	log.Info(ctx, "startup", "status", "configuration loaded",
		"job_id", cfg.JobID, "jobs_root", cfg.JobsRoot, "kafka_enabled", cfg.Kafka.Enabled)

	// -------------------------------------------------------------------------
	// Start Tracing Support
	log.Info(ctx, "startup", "status", "initializing tracing support")

	prob, err := strconv.ParseFloat(os.Getenv("OTEL_SAMPLING_RATIO"), 64)
	if err != nil {
		return execution.JobStatusUnspecified, fmt.Errorf("parsing sampling ratio: %w", err)
	}

	traceProvider, teardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      os.Getenv("OTEL_SERVICE_NAME"),
		ExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ExcludedRoutes: map[string]struct{}{
			"/v1/readiness": {},
			"/v1/liveness":  {},
			"/debug":        {},
			"/metrics":      {},
		},
		Probability: prob,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"k8s.pod.name":     os.Getenv("POD_NAME"),
			"k8s.namespace":    os.Getenv("POD_NAMESPACE"),
			"k8s.container.id": hostname,
		},
		InsecureExporter: true, // TODO: Come back to setup TLS
	})
	if err != nil {
		return execution.JobStatusUnspecified, fmt.Errorf("starting tracing: %w", err)
	}
	defer teardown(ctx)

	tracer := traceProvider.Tracer(os.Getenv("OTEL_SERVICE_NAME"))

	// -------------------------------------------------------------------------
	// Start Debug Service

	go func() {
		debugHost := cfg.Debug.Host
		log.Info(ctx, "startup", "status", "debug router started", "host", debugHost)

		if err := http.ListenAndServe(debugHost, debug.Mux()); err != nil {
			log.Error(ctx, "shutdown", "status", "debug router closed", "host", debugHost, "msg", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Metrics

	mp := otel.GetMeterProvider()
	metricCollector, err := agent.NewAgentMetrics(mp)
	if err != nil {
		return execution.JobStatusUnspecified, fmt.Errorf("creating metrics collector: %w", err)
	}

	// -------------------------------------------------------------------------
	// Initialize Event Bus
	log.Info(ctx, "startup", "status", "initializing event bus")

	clientID := cfg.Kafka.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%s", serviceType, hostname)
	}

	var bus events.EventBus
	if cfg.Kafka.Enabled {
		kafkaClient, err := kafka.NewClient(&kafka.ClientConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.GroupID,
			ClientID: clientID,
		})
		if err != nil {
			return execution.JobStatusUnspecified, fmt.Errorf("creating kafka client: %w", err)
		}
		defer kafkaClient.Close()

		bus, err = kafka.ConnectEventBus(&kafka.EventBusConfig{
			JobStatusTopic:      cfg.Kafka.JobStatusTopic,
			AgentHeartbeatTopic: cfg.Kafka.AgentHeartbeatTopic,
			KillRequestTopic:    cfg.Kafka.KillRequestTopic,
			GroupID:             cfg.Kafka.GroupID,
			ClientID:            clientID,
			ServiceType:         serviceType,
		}, kafkaClient, log, metricCollector, tracer)
		if err != nil {
			return execution.JobStatusUnspecified, fmt.Errorf("connecting event bus: %w", err)
		}
	} else {
		log.Info(ctx, "startup", "status", "kafka disabled, using in-memory event bus")
		bus = memory.NewEventBus()
	}
	defer bus.Close()

	publisher := kafka.NewDomainEventPublisher(bus, events.NewDomainEventTranslator())

	// -------------------------------------------------------------------------
	// Registry Client

	restClient := rest.NewClient(rest.Config{
		BaseURL:           cfg.Registry.BaseURL,
		Timeout:           cfg.Registry.Timeout,
		RequestsPerSecond: cfg.Registry.RequestsPerSecond,
		Burst:             cfg.Registry.Burst,
	}, log, tracer)

	registryClient := registry.NewRetryingClient(restClient, registry.RetryConfig{
		InitialInterval: cfg.Registry.Retry.InitialInterval,
		MaxInterval:     cfg.Registry.Retry.MaxInterval,
		MaxElapsedTime:  cfg.Registry.Retry.MaxElapsedTime,
	}, log)

	reporter := agent.NewStatusReporter(registryClient, publisher, log)

	// -------------------------------------------------------------------------
	// Job Execution

	meta, err := execution.NewAgentMetadata(build)
	if err != nil {
		return execution.JobStatusUnspecified, fmt.Errorf("creating agent metadata: %w", err)
	}

	log.Info(ctx, "startup", "status", "agent identity established",
		"agent_id", meta.AgentID, "version", meta.Version, "pid", meta.PID)

	supervisor := process.NewSupervisor(log, tracer)
	execCtx := execution.NewExecutionContext()

	actions := agent.NewLifecycleActions(reporter, supervisor, cfg.JobID, meta, cfg.JobsRoot, log)
	driver := agent.NewDriver(actions, execCtx, reporter, cfg.JobID, log, tracer, metricCollector)

	heartbeat := agent.NewHeartbeatEmitter(
		meta, cfg.JobID, publisher, cfg.Heartbeat.Interval, log, tracer, metricCollector)
	dispatcher := eventdispatcher.New(tracer, log)
	killer := agent.NewKillListener(cfg.JobID, supervisor, log, tracer, metricCollector)

	rt := agent.NewRuntime(driver, heartbeat, dispatcher, bus, supervisor, killer, log, tracer)

	log.Info(ctx, "startup", "status", "starting job lifecycle", "job_id", cfg.JobID)

	return rt.Run(ctx)
}

// exitCodeFor maps the job's final status onto the process exit code.
func exitCodeFor(status execution.JobStatus) int {
	switch status {
	case execution.JobStatusSucceeded:
		return exitSucceeded
	case execution.JobStatusFailed:
		return exitJobFailed
	case execution.JobStatusKilled:
		return exitJobKilled
	default:
		return exitAgentError
	}
}
