package auction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
)

// State is the lifecycle state of a tracked auction.
type State uint8

const (
	// Open is the state of an auction with no fills yet.
	Open State = iota + 1
	// Active is the state of an auction with at least one fill.
	Active
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Open:
		return "Open"
	case Active:
		return "Active"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState parses a state name.
func ParseState(name string) (State, error) {
	switch name {
	case "Open":
		return Open, nil
	case "Active":
		return Active, nil
	}
	return 0, fmt.Errorf("unknown auction state %q", name)
}

// Auction is the mirror of one live auction.
//
// Amount is replaced on every fill and never mutated in place, so
// snapshots handed out by the store stay stable.
type Auction struct {
	Address common.Address `json:"address" yaml:"address"`
	Token   common.Address `json:"token" yaml:"token"`
	Amount  *big.Int       `json:"amount" yaml:"amount"`
	State   State          `json:"state" yaml:"state"`
}

// Step is the outcome of applying an event to an auction.
type Step struct {
	To     State
	Remove bool
}

type edge struct {
	from  State
	event ir.EventName
}

var transitions = map[edge]Step{
	{Open, ir.EventAuctionOfferTaken}:   {To: Active},
	{Open, ir.EventAuctionClosed}:       {To: Open, Remove: true},
	{Active, ir.EventAuctionOfferTaken}: {To: Active},
	{Active, ir.EventAuctionClosed}:     {To: Active, Remove: true},
}

// Next looks up the step for event from state from.
func Next(from State, event ir.EventName) (Step, bool) {
	step, ok := transitions[edge{from, event}]
	return step, ok
}
