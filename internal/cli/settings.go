package cli

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/liquidator/internal/config"
)

// sourceFlags are the config overrides shared by run and replay.
type sourceFlags struct {
	Database     string
	EventLog     string
	Follow       bool
	PollInterval time.Duration
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&f.EventLog, "log", "", "event log file (.yaml, .yml, .jsonl)")
	cmd.Flags().BoolVar(&f.Follow, "follow", false, "keep polling the database for new events")
	cmd.Flags().DurationVar(&f.PollInterval, "poll-interval", config.DefaultPollInterval, "delay between polls in follow mode")
}

// apply overlays the flags the user actually set.
func (f *sourceFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = f.Database
	}
	if flags.Changed("log") {
		cfg.EventLog = f.EventLog
	}
	if flags.Changed("follow") {
		cfg.Follow = f.Follow
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = f.PollInterval
	}
}

// resolveConfig loads defaults, the config file and the environment, lets
// override apply command flags, and validates the result.
func resolveConfig(opts *RootOptions, override func(*config.Config)) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		if err := cfg.ApplyFile(opts.Config); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if override != nil {
		override(&cfg)
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the text logger used by every command and installs it
// as the slog default.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
