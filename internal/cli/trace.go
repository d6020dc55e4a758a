package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Target   string
	Status   string
	Limit    int
}

// TraceAction is one journaled action in trace output.
type TraceAction struct {
	Seq           int64  `json:"seq"`
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Target        string `json:"target"`
	BidAmount     string `json:"bid_amount,omitempty"`
	MinCollateral string `json:"min_collateral,omitempty"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// TraceResult holds the trace output.
type TraceResult struct {
	Actions []TraceAction `json:"actions"`
	Stats   TraceStats    `json:"stats"`
}

// TraceStats counts the listed actions by status.
type TraceStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Submitted int `json:"submitted"`
	Failed    int `json:"failed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled actions",
		Long: `List the actions recorded in the action journal, oldest first.

Pending actions were claimed but never settled, which means the process
stopped while the submission was in flight. Failed actions carry the
submitter's error and are never retried.

Examples:
  liquidator trace --db ./liquidator.db
  liquidator trace --db ./liquidator.db --target 0x0000000000000000000000000000000000000001
  liquidator trace --db ./liquidator.db --status failed --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Target, "target", "", "only actions targeting this address")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only actions with this status (pending|submitted|failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of actions (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	filter := store.ActionFilter{Limit: opts.Limit}
	if opts.Target != "" {
		if !common.IsHexAddress(opts.Target) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid target address %q", opts.Target))
		}
		target := common.HexToAddress(opts.Target)
		filter.Target = &target
	}
	switch status := ir.ActionStatus(opts.Status); status {
	case "", ir.StatusPending, ir.StatusSubmitted, ir.StatusFailed:
		filter.Status = status
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q (want pending, submitted or failed)", opts.Status))
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
	records, err := st.ListActions(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list actions", err)
	}

	result := buildTraceResult(records)
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	outputTraceText(cmd.OutOrStdout(), result)
	return nil
}

func buildTraceResult(records []store.ActionRecord) TraceResult {
	result := TraceResult{Actions: make([]TraceAction, 0, len(records))}
	for _, rec := range records {
		ta := TraceAction{
			Seq:    rec.Seq,
			ID:     rec.Action.ID,
			Kind:   string(rec.Action.Kind),
			Target: rec.Action.Target.Hex(),
			Status: string(rec.Status),
			Error:  rec.Error,
		}
		if rec.Action.Kind == ir.ActionBid {
			ta.BidAmount = rec.Action.BidAmount.String()
			ta.MinCollateral = rec.Action.MinCollateral.String()
		}
		result.Actions = append(result.Actions, ta)

		switch rec.Status {
		case ir.StatusPending:
			result.Stats.Pending++
		case ir.StatusSubmitted:
			result.Stats.Submitted++
		case ir.StatusFailed:
			result.Stats.Failed++
		}
	}
	result.Stats.Total = len(records)
	return result
}

func outputTraceText(w io.Writer, result TraceResult) {
	if len(result.Actions) == 0 {
		fmt.Fprintln(w, "No actions found.")
		return
	}

	fmt.Fprintln(w, "Actions:")
	for _, a := range result.Actions {
		fmt.Fprintf(w, "  [%d] %-9s %s -> %s", a.Seq, a.Status, a.Kind, a.Target)
		if a.BidAmount != "" {
			fmt.Fprintf(w, " (bid %s, min collateral %s)", a.BidAmount, a.MinCollateral)
		}
		fmt.Fprintln(w)
		if a.Error != "" {
			fmt.Fprintf(w, "      error: %s\n", a.Error)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d total, %d submitted, %d failed, %d pending\n",
		result.Stats.Total, result.Stats.Submitted, result.Stats.Failed, result.Stats.Pending)
}
