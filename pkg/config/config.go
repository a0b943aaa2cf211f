// Package config loads the configuration of the ACP commands from a YAML
// file with ACP_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/observability"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

// EnvPrefix prefixes environment overrides, e.g. ACP_AGENT_COMMAND
const EnvPrefix = "ACP"

// Permission policies answering session/request_permission
const (
	PermissionAllow  = "allow"
	PermissionReject = "reject"
	PermissionCancel = "cancel"
)

// Config is the top-level configuration shared by the commands
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Client    ClientConfig    `mapstructure:"client"`
	Transport TransportConfig `mapstructure:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
}

// AgentConfig describes the agent process to spawn
type AgentConfig struct {
	Command            string            `mapstructure:"command"`
	Args               []string          `mapstructure:"args"`
	Env                map[string]string `mapstructure:"env"`
	Dir                string            `mapstructure:"dir"`
	StopTimeoutSeconds int               `mapstructure:"stop_timeout_seconds"`
}

// ClientConfig configures the host side
type ClientConfig struct {
	Workspace  string `mapstructure:"workspace"`
	Permission string `mapstructure:"permission"`
}

// TransportConfig tunes the connection
type TransportConfig struct {
	MaxLineBytes   int `mapstructure:"max_line_bytes"`
	WriteQueueSize int `mapstructure:"write_queue_size"`
}

// LoggingConfig selects level and format
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// TracingConfig enables OpenTelemetry tracing
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// RecorderConfig enables the SQLite frame recorder
type RecorderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// BridgeConfig configures the websocket bridge
type BridgeConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
	// APIKeys maps user names to keys; empty disables authentication
	APIKeys map[string]string `mapstructure:"api_keys"`
	// ConnectionsPerMinute limits new websockets per user, 0 means unlimited
	ConnectionsPerMinute int `mapstructure:"connections_per_minute"`
	Burst                int `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.command", "")
	v.SetDefault("agent.args", []string{})
	v.SetDefault("agent.dir", "")
	v.SetDefault("agent.stop_timeout_seconds", 5)

	v.SetDefault("client.workspace", "")
	v.SetDefault("client.permission", PermissionReject)

	v.SetDefault("transport.max_line_bytes", 0)
	v.SetDefault("transport.write_queue_size", transport.DefaultConfig().WriteQueueSize)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", string(observability.ExporterTypeNoop))
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.path", "acp-frames.db")

	v.SetDefault("bridge.addr", ":8080")
	v.SetDefault("bridge.path", "/ws")
	v.SetDefault("bridge.connections_per_minute", 0)
	v.SetDefault("bridge.burst", 5)
}

// Load reads the YAML file at path, or only defaults and environment when
// path is empty
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// viper lowercases map keys; environment variable names are case-sensitive
	if path != "" {
		env, err := readAgentEnv(path)
		if err != nil {
			return nil, err
		}
		if len(env) > 0 {
			cfg.Agent.Env = env
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readAgentEnv(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var raw struct {
		Agent struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"agent"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse agent.env: %w", err)
	}
	return raw.Agent.Env, nil
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	var errs []error
	switch c.Client.Permission {
	case PermissionAllow, PermissionReject, PermissionCancel:
	default:
		errs = append(errs, fmt.Errorf("invalid client.permission %q (must be allow, reject or cancel)", c.Client.Permission))
	}
	if c.Client.Workspace != "" && !filepath.IsAbs(c.Client.Workspace) {
		errs = append(errs, fmt.Errorf("client.workspace must be absolute, got %q", c.Client.Workspace))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.NewFormatter(c.Logging.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Transport.MaxLineBytes < 0 {
		errs = append(errs, errors.New("transport.max_line_bytes must not be negative"))
	}
	if c.Bridge.ConnectionsPerMinute < 0 {
		errs = append(errs, errors.New("bridge.connections_per_minute must not be negative"))
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		errs = append(errs, fmt.Errorf("bridge.path must start with /, got %q", c.Bridge.Path))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate %v out of range [0, 1]", c.Tracing.SampleRate))
	}
	return errors.Join(errs...)
}

// NewLogger builds the configured logger writing to stderr
func (c *Config) NewLogger() (logging.Logger, error) {
	formatter, err := logging.NewFormatter(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, formatter)
	logger.SetLevel(level)
	return logger, nil
}

// TransportOptions returns the connection options for the transport section
func (c *Config) TransportOptions() []transport.Option {
	return []transport.Option{
		transport.WithMaxLineBytes(c.Transport.MaxLineBytes),
		transport.WithWriteQueueSize(c.Transport.WriteQueueSize),
	}
}

// ObservabilityConfig maps the metrics and tracing sections
func (c *Config) ObservabilityConfig(serviceName, version string) observability.ObservabilityConfig {
	return observability.ObservabilityConfig{
		EnableMetrics: c.Metrics.Enabled,
		MetricsConfig: observability.MetricsConfig{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Addr:           c.Metrics.Addr,
			MetricsPath:    c.Metrics.Path,
		},
		EnableTracing: c.Tracing.Enabled,
		TracingConfig: observability.TracingConfig{
			ServiceName:    serviceName,
			ServiceVersion: version,
			ExporterType:   observability.ExporterType(c.Tracing.Exporter),
			Endpoint:       c.Tracing.Endpoint,
			Insecure:       c.Tracing.Insecure,
			SampleRate:     c.Tracing.SampleRate,
			SetGlobal:      true,
		},
	}
}

// StopTimeout returns the agent stop grace period
func (a AgentConfig) StopTimeout() time.Duration {
	return time.Duration(a.StopTimeoutSeconds) * time.Second
}

// ProcessConfig describes the agent subprocess. Env entries are sorted so
// the child environment is stable.
func (a AgentConfig) ProcessConfig(logger logging.Logger) transport.ProcessConfig {
	env := make([]string, 0, len(a.Env))
	for k, v := range a.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return transport.ProcessConfig{
		Command:     a.Command,
		Args:        a.Args,
		Env:         env,
		Dir:         a.Dir,
		Logger:      logger,
		StopTimeout: a.StopTimeout(),
	}
}
