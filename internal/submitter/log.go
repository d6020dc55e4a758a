package submitter

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
)

// Log writes each action as a structured log line and always succeeds.
// It is the submitter for dry runs.
type Log struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLog creates a Log submitter. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, level: slog.LevelInfo}
}

// SubmitDepositLiquidationStartedNotice logs a liquidation-started notice.
func (l *Log) SubmitDepositLiquidationStartedNotice(ctx context.Context, deposit common.Address) error {
	l.log(ctx, ir.ActionLiquidationStartedNotice, deposit)
	return nil
}

// SubmitDepositLiquidatedNotice logs a liquidated notice.
func (l *Log) SubmitDepositLiquidatedNotice(ctx context.Context, deposit common.Address) error {
	l.log(ctx, ir.ActionLiquidatedNotice, deposit)
	return nil
}

// SubmitBid logs a bid.
func (l *Log) SubmitBid(ctx context.Context, auction common.Address, bidAmount, minCollateral *big.Int) error {
	l.log(ctx, ir.ActionBid, auction,
		"bid_amount", amount(bidAmount),
		"min_collateral", amount(minCollateral),
	)
	return nil
}

func (l *Log) log(ctx context.Context, kind ir.ActionKind, target common.Address, attrs ...any) {
	args := append([]any{"kind", kind, "target", target.Hex()}, attrs...)
	l.logger.Log(ctx, l.level, "action", args...)
}

func amount(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
