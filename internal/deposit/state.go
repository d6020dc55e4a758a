package deposit

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
)

// State is the lifecycle state of a tracked deposit.
type State uint8

const (
	// Initialized is the state of a deposit that has been created but not funded.
	Initialized State = iota + 1
	// Active is the state of a funded deposit.
	Active
	// StartedLiquidation is the state of a deposit whose liquidation has begun.
	StartedLiquidation
	// Liquidated is the terminal state; the deposit is removed right after
	// entering it.
	Liquidated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Initialized:
		return "Initialized"
	case Active:
		return "Active"
	case StartedLiquidation:
		return "StartedLiquidation"
	case Liquidated:
		return "Liquidated"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler so states print by name in
// JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState parses a state name.
func ParseState(name string) (State, error) {
	for _, s := range []State{Initialized, Active, StartedLiquidation, Liquidated} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown deposit state %q", name)
}

// Deposit is the mirror of one on-chain deposit.
// A deposit is present in the store iff its lifecycle is non-terminal.
type Deposit struct {
	Address common.Address `json:"address" yaml:"address"`
	State   State          `json:"state" yaml:"state"`
}

// Step is the outcome of applying an event to a deposit.
type Step struct {
	// To is the state to commit.
	To State
	// Remove destroys the deposit once the step (and any notification it
	// triggers) has been applied.
	Remove bool
}

type edge struct {
	from  State
	event ir.EventName
}

// transitions is the complete deposit state machine. Any (state, event)
// pair missing here is an invalid transition.
var transitions = map[edge]Step{
	{Initialized, ir.EventFunded}:            {To: Active},
	{Initialized, ir.EventRedeemed}:          {To: Initialized, Remove: true},
	{Active, ir.EventStartedLiquidation}:     {To: StartedLiquidation},
	{Active, ir.EventRedeemed}:               {To: Active, Remove: true},
	{StartedLiquidation, ir.EventLiquidated}: {To: Liquidated, Remove: true},
	{StartedLiquidation, ir.EventRedeemed}:   {To: StartedLiquidation, Remove: true},
}

// Next looks up the step for event from state from.
// The second result is false if the edge is not in the state machine.
func Next(from State, event ir.EventName) (Step, bool) {
	step, ok := transitions[edge{from, event}]
	return step, ok
}
