package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/roach88/liquidator/internal/config"
	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/orchestrator"
	"github.com/roach88/liquidator/internal/source"
	"github.com/roach88/liquidator/internal/store"
	"github.com/roach88/liquidator/internal/submitter"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	sourceFlags
}

// ReplayDeposit is a deposit in the rebuilt mirror.
type ReplayDeposit struct {
	Address string `json:"address"`
	State   string `json:"state"`
}

// ReplayAuction is an auction in the rebuilt mirror.
type ReplayAuction struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	State   string `json:"state"`
}

// ReplayResult is the outcome of a dry-run replay.
type ReplayResult struct {
	Events   int64             `json:"events"`
	Rejected int               `json:"rejected"`
	Deposits []ReplayDeposit   `json:"deposits"`
	Auctions []ReplayAuction   `json:"auctions"`
	Actions  []json.RawMessage `json:"actions"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the mirror from a log without submitting anything",
		Long: `Replay an event log into a fresh mirror and report the final deposits and
auctions together with the actions that would have been submitted.

Nothing is submitted and the action journal is never touched, so replay
is safe to run against a production database.

Exit codes:
  0 - Replay completed
  1 - The event source failed part way
  2 - Command error (no source, unreadable file, etc.)

Examples:
  liquidator replay --log ./events.yaml
  liquidator replay --db ./liquidator.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	opts.sourceFlags.register(cmd)
	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	cfg, err := resolveConfig(opts.RootOptions, func(cfg *config.Config) {
		opts.sourceFlags.apply(cmd, cfg)
		// A dry run must terminate and never submits.
		cfg.Follow = false
		cfg.Submitter = config.SubmitterLog
	})
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Level())

	var st *store.Store
	if cfg.EventLog == "" && cfg.DBPath != "" {
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}
	deposits, auctions, err := openSources(cfg, st)
	if err != nil {
		return err
	}

	var (
		actions  bytes.Buffer
		events   atomic.Int64
		mu       sync.Mutex
		rejected int
	)
	orch := orchestrator.New(submitter.NewJSONL(&actions),
		orchestrator.WithLogger(logger),
		orchestrator.WithErrorHandler(func(ir.Envelope, error) {
			mu.Lock()
			rejected++
			mu.Unlock()
		}),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := orch.Start(ctx, counted(deposits, &events), counted(auctions, &events)); err != nil {
		return WrapExitError(ExitFailure, "failed to start replay", err)
	}
	waitErr := orch.Wait()
	orch.Stop()

	result := ReplayResult{
		Events:   events.Load(),
		Rejected: rejected,
		Deposits: []ReplayDeposit{},
		Auctions: []ReplayAuction{},
		Actions:  []json.RawMessage{},
	}
	for addr, d := range orch.Deposits().All() {
		result.Deposits = append(result.Deposits, ReplayDeposit{Address: addr.Hex(), State: d.State.String()})
	}
	for addr, a := range orch.Auctions().All() {
		result.Auctions = append(result.Auctions, ReplayAuction{
			Address: addr.Hex(),
			Token:   a.Token.Hex(),
			Amount:  a.Amount.String(),
			State:   a.State.String(),
		})
	}
	scanner := bufio.NewScanner(&actions)
	for scanner.Scan() {
		result.Actions = append(result.Actions, json.RawMessage(append([]byte(nil), scanner.Bytes()...)))
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd.OutOrStdout(), result)
	}

	if waitErr != nil {
		return WrapExitError(ExitFailure, "event source failed", waitErr)
	}
	return nil
}

func outputReplayText(w io.Writer, result ReplayResult) {
	fmt.Fprintf(w, "Replayed %d event(s), %d rejected\n", result.Events, result.Rejected)

	fmt.Fprintf(w, "\nDeposits (%d):\n", len(result.Deposits))
	for _, d := range result.Deposits {
		fmt.Fprintf(w, "  %s  %s\n", d.Address, d.State)
	}

	fmt.Fprintf(w, "\nAuctions (%d):\n", len(result.Auctions))
	for _, a := range result.Auctions {
		fmt.Fprintf(w, "  %s  %s  remaining %s of %s\n", a.Address, a.State, a.Amount, a.Token)
	}

	fmt.Fprintf(w, "\nActions (%d):\n", len(result.Actions))
	for _, a := range result.Actions {
		fmt.Fprintf(w, "  %s\n", a)
	}
}

// counted wraps src so every delivered envelope bumps n.
func counted(src source.Source, n *atomic.Int64) source.Source {
	if src == nil {
		return nil
	}
	return countingSource{src: src, n: n}
}

type countingSource struct {
	src source.Source
	n   *atomic.Int64
}

func (c countingSource) Subscribe(ctx context.Context, sink func(ir.Envelope)) error {
	return c.src.Subscribe(ctx, func(env ir.Envelope) {
		c.n.Add(1)
		sink(env)
	})
}
