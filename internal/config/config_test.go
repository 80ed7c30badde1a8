package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears viper's global state between tests.
func resetViper() {
	viper.Reset()
}

func unsetEnvKeys(keys ...string) {
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}

const validLiveMetricsYAML = `
live_metrics:
  instrumentation_key: "test-ikey"
  endpoint: "https://rt.services.visualstudio.com"
`

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT", "SERVER_HOST", "LIVE_METRICS_ENDPOINT", "LIVE_METRICS_INSTRUMENTATION_KEY")
	require.NoError(t, os.Setenv("LIVE_METRICS_INSTRUMENTATION_KEY", "env-ikey"))
	t.Cleanup(func() { unsetEnvKeys("LIVE_METRICS_INSTRUMENTATION_KEY") })

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://rt.services.visualstudio.com", cfg.LiveMetrics.Endpoint)
	assert.Equal(t, "env-ikey", cfg.LiveMetrics.InstrumentationKey)
	assert.False(t, cfg.LiveMetrics.NonNormalizedCPU)
}

func TestLoadConfig_File(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT", "LIVE_METRICS_ENDPOINT")

	yaml := `
server:
  port: 9090
  host: "127.0.0.1"
live_metrics:
  instrumentation_key: "abc-123"
  endpoint: "https://rt.services.visualstudio.com"
  ping_interval: "2s"
  non_normalized_cpu: true
log:
  level: "debug"
  format: "text"
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "abc-123", cfg.LiveMetrics.InstrumentationKey)
	assert.Equal(t, 2*time.Second, cfg.LiveMetrics.PingInterval)
	assert.True(t, cfg.LiveMetrics.NonNormalizedCPU)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	resetViper()

	yaml := `
server:
  port: 8080
live_metrics:
  instrumentation_key: "file-ikey"
  endpoint: "https://rt.services.visualstudio.com"
`
	path := writeTempYAML(t, yaml)

	require.NoError(t, os.Setenv("SERVER_PORT", "9091"))
	require.NoError(t, os.Setenv("LIVE_METRICS_INSTRUMENTATION_KEY", "env-ikey"))
	t.Cleanup(func() {
		unsetEnvKeys("SERVER_PORT", "LIVE_METRICS_INSTRUMENTATION_KEY")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Server.Port, "env should override file")
	assert.Equal(t, "env-ikey", cfg.LiveMetrics.InstrumentationKey, "env should override file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT")

	invalid := `
server:
  port: : invalid
`
	path := writeTempYAML(t, invalid)

	cfg, err := LoadConfig(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_ValidationError_MissingInstrumentationKey(t *testing.T) {
	resetViper()
	unsetEnvKeys("LIVE_METRICS_INSTRUMENTATION_KEY", "LIVE_METRICS_ENDPOINT")

	yaml := `
server:
  port: 9090
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.Error(t, err, "missing instrumentation key must fail validation")
	assert.Nil(t, cfg)
}

func TestLoadConfig_ValidationError_InvalidPort(t *testing.T) {
	resetViper()
	unsetEnvKeys("SERVER_PORT")

	yaml := validLiveMetricsYAML + `
server:
  port: -1
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.Error(t, err, "validation should fail for invalid server.port")
	assert.Nil(t, cfg)
}
