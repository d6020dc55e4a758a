package orchestrator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ActionSubmitter delivers outbound actions to the outside world (the risk
// manager and the auction house). Errors are recorded and never retried.
type ActionSubmitter interface {
	SubmitDepositLiquidationStartedNotice(ctx context.Context, deposit common.Address) error
	SubmitDepositLiquidatedNotice(ctx context.Context, deposit common.Address) error
	SubmitBid(ctx context.Context, auction common.Address, bidAmount, minCollateral *big.Int) error
}
