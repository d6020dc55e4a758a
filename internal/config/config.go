// Package config loads liquidator settings.
//
// Values are resolved in increasing precedence: built-in defaults, a CUE
// (or JSON) config file checked against the embedded #Config schema,
// LIQUIDATOR_* environment variables, then explicit command-line flags,
// which the CLI applies on top of the returned Config.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
)

//go:embed schema.cue
var schemaSource string

// Submitter kinds.
const (
	SubmitterLog   = "log"
	SubmitterJSONL = "jsonl"
)

// Default values.
const (
	DefaultPollInterval = time.Second
	DefaultLogLevel     = "info"
	DefaultServiceName  = "liquidator"
)

// Config holds every setting the CLI needs.
type Config struct {
	DBPath       string        `env:"LIQUIDATOR_DB"`
	EventLog     string        `env:"LIQUIDATOR_EVENT_LOG"`
	PollInterval time.Duration `env:"LIQUIDATOR_POLL_INTERVAL"`
	Follow       bool          `env:"LIQUIDATOR_FOLLOW"`
	LogLevel     string        `env:"LIQUIDATOR_LOG_LEVEL"`
	Submitter    string        `env:"LIQUIDATOR_SUBMITTER"`
	ActionLog    string        `env:"LIQUIDATOR_ACTION_LOG"`
	OTelEndpoint string        `env:"LIQUIDATOR_OTEL_ENDPOINT"`
	ServiceName  string        `env:"LIQUIDATOR_SERVICE_NAME"`
}

// fileConfig mirrors #Config. Pointer fields distinguish "absent" from
// the zero value.
type fileConfig struct {
	DBPath       *string `json:"db_path"`
	EventLog     *string `json:"event_log"`
	PollInterval *string `json:"poll_interval"`
	Follow       *bool   `json:"follow"`
	LogLevel     *string `json:"log_level"`
	Submitter    *string `json:"submitter"`
	ActionLog    *string `json:"action_log"`
	OTelEndpoint *string `json:"otel_endpoint"`
	ServiceName  *string `json:"service_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		LogLevel:     DefaultLogLevel,
		Submitter:    SubmitterLog,
		ServiceName:  DefaultServiceName,
	}
}

// Load resolves defaults, the optional file at path, and the environment.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyFile overlays the fields set in the config file at path.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	f, err := decodeFile(path, data)
	if err != nil {
		return err
	}
	return c.merge(f)
}

// ApplyEnv overlays LIQUIDATOR_* variables that are set.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.Submitter {
	case SubmitterLog:
	case SubmitterJSONL:
		if c.ActionLog == "" {
			errs = append(errs, errors.New("submitter jsonl requires action_log"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown submitter %q", c.Submitter))
	}
	if c.Follow && c.DBPath == "" {
		errs = append(errs, errors.New("follow requires db_path"))
	}
	return errors.Join(errs...)
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

var levels = []string{"debug", "info", "warn", "error"}

// ParseLevel maps a log_level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	if !slices.Contains(levels, name) {
		return 0, fmt.Errorf("log_level must be one of %v, got %q", levels, name)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func (c *Config) merge(f fileConfig) error {
	setString(&c.DBPath, f.DBPath)
	setString(&c.EventLog, f.EventLog)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.Submitter, f.Submitter)
	setString(&c.ActionLog, f.ActionLog)
	setString(&c.OTelEndpoint, f.OTelEndpoint)
	setString(&c.ServiceName, f.ServiceName)
	if f.Follow != nil {
		c.Follow = *f.Follow
	}
	if f.PollInterval != nil {
		d, err := time.ParseDuration(*f.PollInterval)
		if err != nil {
			return fmt.Errorf("poll_interval: %w", err)
		}
		c.PollInterval = d
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// CheckFile validates a config file against the schema without applying it.
func CheckFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	f, err := decodeFile(path, data)
	if err != nil {
		return err
	}
	cfg := Default()
	if err := cfg.merge(f); err != nil {
		return err
	}
	return cfg.Validate()
}

// decodeFile compiles data as CUE (JSON is a subset), unifies it with
// #Config, and decodes the concrete result.
func decodeFile(path string, data []byte) (fileConfig, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).
		LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fileConfig{}, fmt.Errorf("config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fileConfig{}, fmt.Errorf("compile %s: %w", path, err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fileConfig{}, fmt.Errorf("validate %s: %w", path, err)
	}

	var f fileConfig
	if err := unified.Decode(&f); err != nil {
		return fileConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}
