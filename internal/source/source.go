// Package source adapts event logs into ordered envelope streams.
//
// Every Source delivers envelopes in log order to a sink, stamped with
// their log position. Subscribe returns nil once a finite log is
// exhausted, ctx.Err() when cancelled, or the first read failure.
package source

import (
	"context"

	"github.com/roach88/liquidator/internal/engine"
	"github.com/roach88/liquidator/internal/ir"
)

// Source is an ordered event log.
type Source interface {
	Subscribe(ctx context.Context, sink func(ir.Envelope)) error
}

// Slice is an in-memory log. Envelopes are stamped 1..n in slice order.
type Slice struct {
	envelopes []ir.Envelope
}

// NewSlice creates a log over events.
func NewSlice(events ...ir.Event) *Slice {
	clock := engine.NewClock()
	envs := make([]ir.Envelope, len(events))
	for i, ev := range events {
		envs[i] = clock.Stamp(ev)
	}
	return &Slice{envelopes: envs}
}

// Len returns the number of events in the log.
func (s *Slice) Len() int {
	return len(s.envelopes)
}

// Subscribe delivers every envelope in order.
func (s *Slice) Subscribe(ctx context.Context, sink func(ir.Envelope)) error {
	return emit(ctx, s.envelopes, sink)
}

// Filter restricts src to events of one family. Positions are preserved.
func Filter(src Source, family ir.Family) Source {
	return filtered{src: src, family: family}
}

type filtered struct {
	src    Source
	family ir.Family
}

func (f filtered) Subscribe(ctx context.Context, sink func(ir.Envelope)) error {
	return f.src.Subscribe(ctx, func(env ir.Envelope) {
		if env.Event.Family() == f.family {
			sink(env)
		}
	})
}

func emit(ctx context.Context, envs []ir.Envelope, sink func(ir.Envelope)) error {
	for _, env := range envs {
		if err := ctx.Err(); err != nil {
			return err
		}
		sink(env)
	}
	return nil
}
