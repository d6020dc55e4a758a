package ir

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ActionKind identifies an outbound action.
type ActionKind string

const (
	// ActionLiquidationStartedNotice tells the risk manager a deposit entered liquidation.
	ActionLiquidationStartedNotice ActionKind = "deposit_liquidation_started_notice"
	// ActionLiquidatedNotice tells the risk manager a deposit was liquidated.
	ActionLiquidatedNotice ActionKind = "deposit_liquidated_notice"
	// ActionBid places a bid on an auction.
	ActionBid ActionKind = "bid"
)

// Action is an outbound request for the action-submission collaborator.
type Action struct {
	// ID identifies the action in the journal.
	// Notices use a content-addressed ID (see NoticeID); bids use a UUIDv7.
	ID     string         `json:"id"`
	Kind   ActionKind     `json:"kind"`
	Target common.Address `json:"target"`

	// Bid only.
	BidAmount     *big.Int `json:"bid_amount,omitempty"`
	MinCollateral *big.Int `json:"min_collateral,omitempty"`
}

// NewNotice builds a risk-manager notice for a deposit.
// The ID is derived from (kind, deposit) so that replaying the same log
// produces the same notice identity.
func NewNotice(kind ActionKind, deposit common.Address) Action {
	return Action{
		ID:     NoticeID(kind, deposit),
		Kind:   kind,
		Target: deposit,
	}
}

// NewBid builds a bid action with a caller-supplied ID.
func NewBid(id string, auction common.Address, bidAmount, minCollateral *big.Int) Action {
	return Action{
		ID:            id,
		Kind:          ActionBid,
		Target:        auction,
		BidAmount:     bidAmount,
		MinCollateral: minCollateral,
	}
}

// Args returns the action arguments keyed by wire name, suitable for
// canonical encoding.
func (a Action) Args() map[string]any {
	args := map[string]any{
		"kind":   string(a.Kind),
		"target": a.Target.Hex(),
	}
	if a.Kind == ActionBid {
		args["bid_amount"] = amountString(a.BidAmount)
		args["min_collateral"] = amountString(a.MinCollateral)
	}
	return args
}

// ActionStatus is the journal state of an action.
type ActionStatus string

const (
	// StatusPending marks an action claimed but not yet handed to the submitter.
	StatusPending ActionStatus = "pending"
	// StatusSubmitted marks an action the submitter accepted.
	StatusSubmitted ActionStatus = "submitted"
	// StatusFailed marks an action the submitter rejected. Failed actions
	// are never retried.
	StatusFailed ActionStatus = "failed"
)

// ParseAction rebuilds an Action from its ID and canonical arguments, as
// stored in the action journal.
func ParseAction(id string, args map[string]string) (Action, error) {
	target, err := parseAddress("target", args["target"])
	if err != nil {
		return Action{}, fmt.Errorf("action %s: %w", id, err)
	}
	a := Action{ID: id, Kind: ActionKind(args["kind"]), Target: target}

	switch a.Kind {
	case ActionLiquidationStartedNotice, ActionLiquidatedNotice:
	case ActionBid:
		if a.BidAmount, err = parseAmount("bid_amount", args["bid_amount"]); err != nil {
			return Action{}, fmt.Errorf("action %s: %w", id, err)
		}
		if a.MinCollateral, err = parseAmount("min_collateral", args["min_collateral"]); err != nil {
			return Action{}, fmt.Errorf("action %s: %w", id, err)
		}
	default:
		return Action{}, fmt.Errorf("action %s: unknown kind %q", id, args["kind"])
	}
	return a, nil
}
