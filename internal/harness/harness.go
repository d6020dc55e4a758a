package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/lifecycle"
	"github.com/roach88/liquidator/internal/orchestrator"
	"github.com/roach88/liquidator/internal/store"
	"github.com/roach88/liquidator/internal/testutil"
)

// Harness runs one scenario against a fresh orchestrator.
//
// Steps are applied one at a time and the orchestrator is flushed after
// each, so the trace is deterministic even though entities are handled
// concurrently in production.
type Harness struct {
	orch     *orchestrator.Orchestrator
	recorder *testutil.Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	failed []rejected
}

type rejected struct {
	env ir.Envelope
	err error
}

// Run executes a scenario and returns the result.
//
// Each run journals actions in a fresh in-memory SQLite database, and bid
// IDs are sequential, so repeated runs produce identical traces.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with an explicit logger for the orchestrator.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	recorder := testutil.NewRecorder()
	for _, f := range scenario.Failures {
		recorder.FailFor(common.HexToAddress(f.Target), errors.New(f.Error))
	}

	h := &Harness{recorder: recorder, logger: logger}
	h.orch = orchestrator.New(recorder,
		orchestrator.WithLogger(logger),
		orchestrator.WithJournal(st),
		orchestrator.WithIDGenerator(testutil.NewSequentialIDs("bid")),
		orchestrator.WithErrorHandler(h.reject),
	)
	defer h.orch.Stop()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, int64(i+1), step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	h.snapshot(result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, seq int64, step Step, result *Result) error {
	seen := len(h.recorder.Calls())

	if step.Bid != nil {
		auction := common.HexToAddress(step.Bid.Auction)
		amount, err := ir.ParseAmount(step.Bid.Amount)
		if err != nil {
			return err
		}
		minCollateral, err := ir.ParseAmount(step.Bid.MinCollateral)
		if err != nil {
			return err
		}
		// A bid the submitter rejected shows up as a failed action entry.
		// Anything that stopped it before the submitter is a step error.
		err = h.orch.PlaceBid(ctx, auction, amount, minCollateral)
		if err != nil && len(h.recorder.Calls()) == seen {
			h.logger.Warn("bid not submitted", "seq", seq, "auction", auction.Hex(), "error", err)
			result.add(TraceEntry{
				Type: EntryError,
				Seq:  seq,
				Name: string(ir.ActionBid),
				Key:  auction.Hex(),
				Code: CodeBidNotSubmitted,
			})
		}
	} else {
		ev, err := step.Record.ToEvent()
		if err != nil {
			return err
		}
		result.add(TraceEntry{
			Type: EntryEvent,
			Seq:  seq,
			Name: string(ev.Name()),
			Key:  ev.Key().Hex(),
		})
		if err := h.orch.Dispatch(ctx, ir.Envelope{Seq: seq, Event: ev}); err != nil {
			return err
		}
	}
	h.orch.Flush()

	for _, r := range h.drainRejected() {
		result.add(TraceEntry{
			Type: EntryError,
			Seq:  r.env.Seq,
			Name: string(r.env.Event.Name()),
			Key:  r.env.Event.Key().Hex(),
			Code: string(lifecycle.CodeOf(r.err)),
		})
	}
	for _, c := range h.recorder.Calls()[seen:] {
		result.add(actionEntry(seq, c))
	}
	return nil
}

func actionEntry(seq int64, c testutil.Call) TraceEntry {
	e := TraceEntry{
		Type:   EntryAction,
		Seq:    seq,
		Name:   string(c.Kind),
		Key:    c.Target.Hex(),
		Status: string(ir.StatusSubmitted),
	}
	if c.Err != nil {
		e.Status = string(ir.StatusFailed)
	}
	if c.Kind == ir.ActionBid {
		e.BidAmount = c.BidAmount.String()
		e.MinCollateral = c.MinCollateral.String()
	}
	return e
}

func (h *Harness) reject(env ir.Envelope, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, rejected{env: env, err: err})
}

func (h *Harness) drainRejected() []rejected {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.failed
	h.failed = nil
	return out
}

func (h *Harness) snapshot(result *Result) {
	for addr, d := range h.orch.Deposits().All() {
		result.Deposits = append(result.Deposits, DepositState{
			Address: addr.Hex(),
			State:   d.State.String(),
		})
	}
	for addr, a := range h.orch.Auctions().All() {
		result.Auctions = append(result.Auctions, AuctionState{
			Address: addr.Hex(),
			Token:   a.Token.Hex(),
			Amount:  a.Amount.String(),
			State:   a.State.String(),
		})
	}
}
