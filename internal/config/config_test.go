package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.Sources.BoundaryURL, "160a3665943d4864806d7b1399029a04_0.geojson")
	assert.Contains(t, cfg.Sources.RegistrationURL, "g4jp-m82n")
	assert.Contains(t, cfg.Sources.TurnoutURL, "fpmf-whei")
	assert.Equal(t, "http://api.phila.gov:80/polling-places/v1/", cfg.Polling.BaseURL)
	assert.Equal(t, 1, cfg.Polling.Concurrency)
	assert.InDelta(t, 10.0, cfg.Polling.RateLimit, 0.001)
	assert.Empty(t, cfg.Polling.CachePath)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 60000, cfg.Retry.MaxBackoffMs)
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 0.001)
	assert.InDelta(t, 0.0, cfg.Retry.JitterFraction, 0.001)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSecs)
	assert.Equal(t, "ward-stats/1.0", cfg.HTTP.UserAgent)
	assert.Equal(t, DefaultOutputFile, cfg.Output.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
polling:
  concurrency: 4
  cache_path: polling.db
log:
  level: debug
  format: console
retry:
  max_attempts: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Polling.Concurrency)
	assert.Equal(t, "polling.db", cfg.Polling.CachePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	// Defaults still apply for unset values
	assert.Equal(t, 2000, cfg.Retry.InitialBackoffMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
output:
  file: from-file.geojson
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("WARDSTATS_OUTPUT_FILE", "from-env.geojson")
	t.Setenv("WARDSTATS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env.geojson", cfg.Output.File)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("WARDSTATS_SOURCES_TURNOUT_URL", "http://localhost/turnout.csv")
	t.Setenv("WARDSTATS_POLLING_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/turnout.csv", cfg.Sources.TurnoutURL)
	assert.Equal(t, 8, cfg.Polling.Concurrency)
}

func TestLoadInvalidConcurrency(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WARDSTATS_POLLING_CONCURRENCY", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polling.concurrency")
}

func validConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			BoundaryURL:     "http://b",
			RegistrationURL: "http://r",
			TurnoutURL:      "http://t",
		},
		Polling: PollingConfig{BaseURL: "http://p", Concurrency: 1},
		Retry:   RetryConfig{MaxAttempts: 5},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Sources.TurnoutURL = ""
	assert.ErrorContains(t, cfg.Validate(), "source URLs")

	cfg = validConfig()
	cfg.Polling.BaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "polling.base_url")

	cfg = validConfig()
	cfg.Retry.MaxAttempts = 0
	assert.ErrorContains(t, cfg.Validate(), "retry.max_attempts")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestLoadYAMLRoundTrip(t *testing.T) {
	dir := chdirTemp(t)

	want := Config{
		Sources: SourcesConfig{
			BoundaryURL:     "http://example.test/b.geojson",
			RegistrationURL: "http://example.test/r.csv",
			TurnoutURL:      "http://example.test/t.csv",
		},
		Polling: PollingConfig{BaseURL: "http://example.test/pp/", Concurrency: 2, RateLimit: 3.5, CachePath: "pp.db"},
		Retry:   RetryConfig{MaxAttempts: 4, InitialBackoffMs: 100, MaxBackoffMs: 1000, Multiplier: 3, JitterFraction: 0.25},
		HTTP:    HTTPConfig{TimeoutSecs: 9, UserAgent: "ua/2"},
		Output:  OutputConfig{File: "x.geojson"},
		Log:     LogConfig{Level: "warn", Format: "console"},
	}
	data, err := yaml.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644))

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}
