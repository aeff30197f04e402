package fileloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ahrav/dirigent/internal/config"
)

// envPrefix namespaces the environment variables the loader honors. A key
// such as registry.base_url maps to DIRIGENT_REGISTRY_BASE_URL.
const envPrefix = "DIRIGENT"

// FileLoader loads configuration by layering three sources: built-in
// defaults, an optional YAML file, and environment variables, with the
// environment winning. It implements the Loader interface; a missing file is
// not an error because fully environment-driven deployments carry no file at
// all.
type FileLoader struct {
	// path is the filesystem path to the configuration file. Empty skips the
	// file layer entirely.
	path string
}

// NewFileLoader creates a new FileLoader that will load configuration from
// the specified file path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load resolves and validates the configuration. The context parameter allows
// for cancellation of long-running operations.
func (l *FileLoader) Load(ctx context.Context) (*config.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			// Environment and defaults still apply without a file.
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every configuration key. Keys without a meaningful
// default are registered empty so environment overrides resolve for them too.
func setDefaults(v *viper.Viper) {
	v.SetDefault("job_id", "")
	v.SetDefault("jobs_root", "/var/lib/dirigent/jobs")

	v.SetDefault("registry.base_url", "")
	v.SetDefault("registry.timeout", 30*time.Second)
	v.SetDefault("registry.requests_per_second", 10.0)
	v.SetDefault("registry.burst", 5)
	v.SetDefault("registry.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("registry.retry.max_interval", 10*time.Second)
	v.SetDefault("registry.retry.max_elapsed_time", 2*time.Minute)

	v.SetDefault("heartbeat.interval", 10*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.job_status_topic", "job-status-events")
	v.SetDefault("kafka.agent_heartbeat_topic", "agent-heartbeats")
	v.SetDefault("kafka.kill_request_topic", "job-kill-requests")
	v.SetDefault("kafka.group_id", "dirigent-agents")
	v.SetDefault("kafka.client_id", "")

	v.SetDefault("debug.host", "0.0.0.0:6060")
}
