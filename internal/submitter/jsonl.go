package submitter

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
)

// JSONL appends one canonical JSON object per action to a writer.
//
// Lines carry the action's wire arguments (kind, target and, for bids,
// bid_amount and min_collateral). Write failures are returned to the
// caller, which records the action as failed.
//
// Thread-safety: safe for concurrent use; lines are never interleaved.
type JSONL struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewJSONL creates a submitter writing to w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{w: w}
}

// OpenJSONL opens path for appending, creating it if needed.
func OpenJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open action log %s: %w", path, err)
	}
	return &JSONL{w: f, closer: f}, nil
}

// Close closes the underlying file, if OpenJSONL opened one.
func (j *JSONL) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// SubmitDepositLiquidationStartedNotice writes a liquidation-started notice.
func (j *JSONL) SubmitDepositLiquidationStartedNotice(ctx context.Context, deposit common.Address) error {
	return j.write(ctx, ir.Action{Kind: ir.ActionLiquidationStartedNotice, Target: deposit})
}

// SubmitDepositLiquidatedNotice writes a liquidated notice.
func (j *JSONL) SubmitDepositLiquidatedNotice(ctx context.Context, deposit common.Address) error {
	return j.write(ctx, ir.Action{Kind: ir.ActionLiquidatedNotice, Target: deposit})
}

// SubmitBid writes a bid.
func (j *JSONL) SubmitBid(ctx context.Context, auction common.Address, bidAmount, minCollateral *big.Int) error {
	return j.write(ctx, ir.Action{
		Kind:          ir.ActionBid,
		Target:        auction,
		BidAmount:     bidAmount,
		MinCollateral: minCollateral,
	})
}

func (j *JSONL) write(ctx context.Context, a ir.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := ir.MarshalCanonical(a.Args())
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.Kind, err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", a.Kind, err)
	}
	return nil
}
