package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SubmitterLog, cfg.Submitter)
	assert.Equal(t, "liquidator", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadCUEFile(t *testing.T) {
	path := writeConfig(t, "liquidator.cue", `
db_path:       "/var/lib/liquidator.db"
poll_interval: "250ms"
follow:        true
log_level:     "debug"
submitter:     "jsonl"
action_log:    "/var/log/actions.jsonl"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/liquidator.db", cfg.DBPath)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.Follow)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, SubmitterJSONL, cfg.Submitter)
	assert.Equal(t, "/var/log/actions.jsonl", cfg.ActionLog)
	assert.Equal(t, "liquidator", cfg.ServiceName, "unset fields keep defaults")
}

func TestLoadJSONFile(t *testing.T) {
	path := writeConfig(t, "liquidator.json", `{"event_log": "events.yaml", "service_name": "liq-staging"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "events.yaml", cfg.EventLog)
	assert.Equal(t, "liq-staging", cfg.ServiceName)
}

func TestSchemaRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", `db_file: "x.db"`},
		{"bad log level", `log_level: "trace"`},
		{"bad submitter", `submitter: "http"`},
		{"bad duration", `poll_interval: "soon"`},
		{"wrong type", `follow: "yes"`},
		{"empty service name", `service_name: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "bad.cue", tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSyntaxError(t *testing.T) {
	path := writeConfig(t, "broken.cue", `db_path: "x`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	assert.ErrorContains(t, err, "read config")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "liquidator.cue", `
db_path:   "from-file.db"
log_level: "warn"
`)
	t.Setenv("LIQUIDATOR_DB", "from-env.db")
	t.Setenv("LIQUIDATOR_POLL_INTERVAL", "3s")
	t.Setenv("LIQUIDATOR_OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, "http://collector:4318", cfg.OTelEndpoint)
	assert.Equal(t, "warn", cfg.LogLevel, "unset env leaves file value")
}

func TestEnvParseError(t *testing.T) {
	t.Setenv("LIQUIDATOR_FOLLOW", "maybe")
	_, err := Load("")
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval must be positive"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level must be one of"},
		{"unknown submitter", func(c *Config) { c.Submitter = "grpc" }, `unknown submitter "grpc"`},
		{"jsonl without path", func(c *Config) { c.Submitter = SubmitterJSONL }, "requires action_log"},
		{"follow without db", func(c *Config) { c.Follow = true }, "follow requires db_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = -time.Second
	cfg.Submitter = "carrier-pigeon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestCheckFile(t *testing.T) {
	good := writeConfig(t, "good.cue", `submitter: "log"`)
	assert.NoError(t, CheckFile(good))

	incomplete := writeConfig(t, "jsonl.cue", `submitter: "jsonl"`)
	assert.ErrorContains(t, CheckFile(incomplete), "requires action_log")
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("INFO+2")
	assert.Error(t, err)
}
