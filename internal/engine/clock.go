package engine

import (
	"sync/atomic"

	"github.com/roach88/liquidator/internal/ir"
)

// Clock stamps events with their position in a log.
//
// Positions start at 1 and are strictly increasing, so stamping the same
// log twice yields the same envelopes. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first position is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new position.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Stamp wraps ev in an envelope at the next position.
func (c *Clock) Stamp(ev ir.Event) ir.Envelope {
	return ir.Envelope{Seq: c.Next(), Event: ev}
}
