package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/source"
	"github.com/roach88/liquidator/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
}

// IngestResult reports what an ingest appended.
type IngestResult struct {
	Appended      int   `json:"appended"`
	LastDeposit   int64 `json:"last_deposit_seq"`
	LastAuction   int64 `json:"last_auction_seq"`
	DepositEvents int   `json:"deposit_events"`
	AuctionEvents int   `json:"auction_events"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <event-log>",
		Short: "Append an event log file to the database",
		Long: `Append the events of a YAML or JSONL event log to the database event table.

The whole file is validated before anything is written and appended in a
single transaction. A running "liquidator run --db ... --follow" picks
the new events up on its next poll.

Examples:
  liquidator ingest --db ./liquidator.db ./events.yaml
  liquidator ingest --db ./liquidator.db ./events.jsonl --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runIngest(opts *IngestOptions, path string, cmd *cobra.Command) error {
	envs, err := source.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load event log", err)
	}

	result := IngestResult{Appended: len(envs)}
	events := make([]ir.Event, len(envs))
	for i, env := range envs {
		events[i] = env.Event
		if env.Event.Family() == ir.FamilyDeposit {
			result.DepositEvents++
		} else {
			result.AuctionEvents++
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.AppendEvents(ctx, events); err != nil {
		return WrapExitError(ExitCommandError, "failed to append events", err)
	}
	if result.LastDeposit, err = st.LastEventSeq(ctx, ir.FamilyDeposit); err != nil {
		return WrapExitError(ExitCommandError, "failed to read deposit log position", err)
	}
	if result.LastAuction, err = st.LastEventSeq(ctx, ir.FamilyAuction); err != nil {
		return WrapExitError(ExitCommandError, "failed to read auction log position", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Appended %d event(s): %d deposit, %d auction\n",
		result.Appended, result.DepositEvents, result.AuctionEvents)
	return nil
}
