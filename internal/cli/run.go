package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/liquidator/internal/config"
	"github.com/roach88/liquidator/internal/engine"
	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/orchestrator"
	"github.com/roach88/liquidator/internal/source"
	"github.com/roach88/liquidator/internal/store"
	"github.com/roach88/liquidator/internal/submitter"
	"github.com/roach88/liquidator/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	sourceFlags

	Submitter string
	ActionLog string

	// IDGenerator overrides the bid ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// RunSummary is printed when run returns.
type RunSummary struct {
	Deposits int `json:"deposits"`
	Auctions int `json:"auctions"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror the event logs and submit actions",
		Long: `Replay the deposit and auction event logs from the beginning and submit
liquidation notices as deposits pass through liquidation.

Events come from an event log file (--log) or from the database event
table (--db). With --follow the database is polled for new events until
interrupted. When --db is set, submitted actions are journaled so a
restart never submits the same notice twice.

Example:
  liquidator run --log ./events.yaml
  liquidator run --db ./liquidator.db --follow --submitter jsonl --action-log ./actions.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLiquidator(opts, cmd)
		},
	}

	opts.sourceFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Submitter, "submitter", config.SubmitterLog, "action submitter (log|jsonl)")
	cmd.Flags().StringVar(&opts.ActionLog, "action-log", "", "output file for the jsonl submitter")

	return cmd
}

func runLiquidator(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := resolveConfig(opts.RootOptions, func(cfg *config.Config) {
		opts.sourceFlags.apply(cmd, cfg)
		if cmd.Flags().Changed("submitter") {
			cfg.Submitter = opts.Submitter
		}
		if cmd.Flags().Changed("action-log") {
			cfg.ActionLog = opts.ActionLog
		}
	})
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Level())

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	sub, closeSub, err := openSubmitter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSub()

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if opts.IDGenerator != nil {
		orchOpts = append(orchOpts, orchestrator.WithIDGenerator(opts.IDGenerator))
	}

	var st *store.Store
	if cfg.DBPath != "" {
		logger.Info("opening database", "path", cfg.DBPath)
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		orchOpts = append(orchOpts, orchestrator.WithJournal(st))
	}

	deposits, auctions, err := openSources(cfg, st)
	if err != nil {
		return err
	}

	orch := orchestrator.New(sub, orchOpts...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			orch.Stop()
		case <-ctx.Done():
		}
	}()

	if err := orch.Start(ctx, deposits, auctions); err != nil {
		return WrapExitError(ExitFailure, "failed to start", err)
	}
	if cfg.Follow {
		fmt.Fprintln(cmd.ErrOrStderr(), "Following event log. Press Ctrl-C to stop.")
	}

	waitErr := orch.Wait()
	orch.Stop()

	summary := RunSummary{
		Deposits: orch.Deposits().Count(),
		Auctions: orch.Auctions().Count(),
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Live deposits: %d\nLive auctions: %d\n", summary.Deposits, summary.Auctions)
	}

	if waitErr != nil {
		return WrapExitError(ExitFailure, "event source failed", waitErr)
	}
	logger.Info("liquidator stopped gracefully")
	return nil
}

// openSubmitter builds the configured ActionSubmitter. The returned close
// function is always safe to call.
func openSubmitter(cfg config.Config, logger *slog.Logger) (orchestrator.ActionSubmitter, func(), error) {
	switch cfg.Submitter {
	case config.SubmitterJSONL:
		j, err := submitter.OpenJSONL(cfg.ActionLog)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open action log", err)
		}
		return j, func() {
			if err := j.Close(); err != nil {
				logger.Error("error closing action log", "error", err)
			}
		}, nil
	default:
		return submitter.NewLog(logger), func() {}, nil
	}
}

// openSources picks the event sources: the log file when one is
// configured, otherwise the database event table.
func openSources(cfg config.Config, st *store.Store) (deposits, auctions source.Source, err error) {
	switch {
	case cfg.EventLog != "":
		if _, err := source.FormatFor(cfg.EventLog); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "unsupported event log", err)
		}
		if _, err := os.Stat(cfg.EventLog); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "event log not found", err)
		}
		file := source.NewFile(cfg.EventLog)
		return source.Filter(file, ir.FamilyDeposit), source.Filter(file, ir.FamilyAuction), nil

	case st != nil:
		d := source.NewStore(st, ir.FamilyDeposit)
		a := source.NewStore(st, ir.FamilyAuction)
		for _, s := range []*source.Store{d, a} {
			s.Follow = cfg.Follow
			s.PollInterval = cfg.PollInterval
		}
		return d, a, nil

	default:
		return nil, nil, NewExitError(ExitCommandError, "no event source: set --log or --db")
	}
}
