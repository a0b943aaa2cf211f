package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/observability"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, PermissionReject, cfg.Client.Permission)
	assert.Equal(t, 5, cfg.Agent.StopTimeoutSeconds)
	assert.Equal(t, 64, cfg.Transport.WriteQueueSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, string(observability.ExporterTypeNoop), cfg.Tracing.Exporter)
	assert.Equal(t, "/ws", cfg.Bridge.Path)
	assert.False(t, cfg.Recorder.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
agent:
  command: acp-echo-agent
  args: ["--verbose"]
  env:
    OPENAI_API_KEY: secret
    LogLevel: debug
client:
  workspace: /tmp/ws
  permission: allow
transport:
  max_line_bytes: 1048576
metrics:
  enabled: true
  addr: 127.0.0.1:0
bridge:
  api_keys:
    alice: k1
  connections_per_minute: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "acp-echo-agent", cfg.Agent.Command)
	assert.Equal(t, []string{"--verbose"}, cfg.Agent.Args)
	// keys keep their case
	assert.Equal(t, map[string]string{"OPENAI_API_KEY": "secret", "LogLevel": "debug"}, cfg.Agent.Env)
	assert.Equal(t, "/tmp/ws", cfg.Client.Workspace)
	assert.Equal(t, PermissionAllow, cfg.Client.Permission)
	assert.Equal(t, 1048576, cfg.Transport.MaxLineBytes)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, map[string]string{"alice": "k1"}, cfg.Bridge.APIKeys)
	assert.Equal(t, 30, cfg.Bridge.ConnectionsPerMinute)
	assert.Equal(t, 5, cfg.Bridge.Burst)

	obs := cfg.ObservabilityConfig("acp-client", "test")
	assert.True(t, obs.EnableMetrics)
	assert.Equal(t, "127.0.0.1:0", obs.MetricsConfig.Addr)
	assert.False(t, obs.EnableTracing)
	assert.Len(t, cfg.TransportOptions(), 2)

	proc := cfg.Agent.ProcessConfig(logging.NewNop())
	assert.Equal(t, "acp-echo-agent", proc.Command)
	assert.Equal(t, []string{"LogLevel=debug", "OPENAI_API_KEY=secret"}, proc.Env)
	assert.Equal(t, 5*time.Second, proc.StopTimeout)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
client:
  permission: allow
`)
	t.Setenv("ACP_CLIENT_PERMISSION", "cancel")
	t.Setenv("ACP_AGENT_COMMAND", "/usr/local/bin/agent")
	t.Setenv("ACP_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PermissionCancel, cfg.Client.Permission)
	assert.Equal(t, "/usr/local/bin/agent", cfg.Agent.Command)

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logging.DebugLevel, logger.GetLevel())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
client:
  workspace: relative/dir
  permission: maybe
logging:
  format: xml
tracing:
  sample_rate: 2
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client.permission")
	assert.Contains(t, err.Error(), "client.workspace")
	assert.Contains(t, err.Error(), "log format")
	assert.Contains(t, err.Error(), "sample_rate")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
