// Package config holds the agent's runtime configuration: which job to run,
// where job directories live, how to reach the job registry, and how the
// event bus is wired. Configuration merges a YAML file with environment
// overrides; see the fileloader package.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the top-level agent configuration.
type Config struct {
	// JobID identifies the single job this agent process runs.
	JobID string `mapstructure:"job_id" validate:"required"`

	// JobsRoot is the directory job working directories are created under
	// when the registry does not place a job explicitly.
	JobsRoot string `mapstructure:"jobs_root" validate:"required"`

	Registry  RegistryConfig  `mapstructure:"registry"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// RegistryConfig configures the REST client for the job registry.
type RegistryConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// RequestsPerSecond and Burst bound the client-side request rate so a
	// tight retry loop cannot hammer the registry.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`

	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig bounds the backoff applied to transient registry failures.
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// HeartbeatConfig configures the agent's liveness beats.
type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// KafkaConfig configures the event bus connection. When Enabled is false the
// agent runs with an in-process bus: status changes still persist through the
// registry, they just are not announced anywhere.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`

	JobStatusTopic      string `mapstructure:"job_status_topic"`
	AgentHeartbeatTopic string `mapstructure:"agent_heartbeat_topic"`
	KillRequestTopic    string `mapstructure:"kill_request_topic"`

	GroupID  string `mapstructure:"group_id"`
	ClientID string `mapstructure:"client_id"`
}

// DebugConfig configures the debug endpoint serving pprof and health probes.
type DebugConfig struct {
	Host string `mapstructure:"host"`
}

// Validate checks the configuration for structural completeness, including
// conditional requirements such as broker addresses when Kafka is enabled.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("invalid configuration: kafka enabled with no brokers")
		}
		if c.Kafka.KillRequestTopic == "" {
			return fmt.Errorf("invalid configuration: kafka enabled with no kill request topic")
		}
	}
	return nil
}
