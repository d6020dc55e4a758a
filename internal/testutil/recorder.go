package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
)

// Call is one submission observed by a Recorder.
type Call struct {
	Kind          ir.ActionKind
	Target        common.Address
	BidAmount     *big.Int
	MinCollateral *big.Int
	Err           error
}

// Recorder is an ActionSubmitter that records every call.
//
// Failures can be injected per target, and submissions can be held at a
// gate to simulate a stuck downstream.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	fail    map[common.Address]error
	gate    chan struct{}
	waiting int
}

// NewRecorder creates a recorder that accepts every submission.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[common.Address]error)}
}

// FailFor makes every submission for target return err.
func (r *Recorder) FailFor(target common.Address, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[target] = err
}

// Hold makes subsequent submissions block until the returned release
// function is called (or their context is cancelled).
func (r *Recorder) Hold() (release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gate := make(chan struct{})
	r.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.gate == gate {
				r.gate = nil
			}
			r.mu.Unlock()
			close(gate)
		})
	}
}

// Waiting returns the number of submissions blocked by Hold.
func (r *Recorder) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// SubmitDepositLiquidationStartedNotice records a liquidation-started notice.
func (r *Recorder) SubmitDepositLiquidationStartedNotice(ctx context.Context, deposit common.Address) error {
	return r.record(ctx, Call{Kind: ir.ActionLiquidationStartedNotice, Target: deposit})
}

// SubmitDepositLiquidatedNotice records a liquidated notice.
func (r *Recorder) SubmitDepositLiquidatedNotice(ctx context.Context, deposit common.Address) error {
	return r.record(ctx, Call{Kind: ir.ActionLiquidatedNotice, Target: deposit})
}

// SubmitBid records a bid.
func (r *Recorder) SubmitBid(ctx context.Context, auction common.Address, bidAmount, minCollateral *big.Int) error {
	return r.record(ctx, Call{
		Kind:          ir.ActionBid,
		Target:        auction,
		BidAmount:     bidAmount,
		MinCollateral: minCollateral,
	})
}

func (r *Recorder) record(ctx context.Context, c Call) error {
	r.mu.Lock()
	gate := r.gate
	if gate != nil {
		r.waiting++
	}
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
		r.mu.Lock()
		r.waiting--
		r.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c.Err = r.fail[c.Target]
	r.calls = append(r.calls, c)
	return c.Err
}

// Calls returns a copy of all recorded calls in submission order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Kinds returns the kinds submitted for target, in order.
func (r *Recorder) Kinds(target common.Address) []ir.ActionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []ir.ActionKind
	for _, c := range r.calls {
		if c.Target == target {
			kinds = append(kinds, c.Kind)
		}
	}
	return kinds
}

// Count returns the number of recorded calls of kind.
func (r *Recorder) Count(kind ir.ActionKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
