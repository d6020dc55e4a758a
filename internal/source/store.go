package source

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/store"
)

// EventReader is the slice of *store.Store a Store source needs.
type EventReader interface {
	ReadEvents(ctx context.Context, family ir.Family, after int64, limit int) ([]store.StoredEvent, error)
}

// Store replays the SQLite event table from the beginning. With Follow
// set it keeps polling for newly appended rows until ctx is cancelled.
type Store struct {
	reader EventReader
	family ir.Family

	// Follow keeps the subscription open after the log is exhausted.
	Follow bool
	// PollInterval is the delay between polls in follow mode.
	PollInterval time.Duration
	// BatchSize bounds each read.
	BatchSize int
}

// Default polling parameters.
const (
	DefaultPollInterval = time.Second
	DefaultBatchSize    = 500
)

// NewStore creates a source over one family of the event table.
// An empty family reads both families.
func NewStore(reader EventReader, family ir.Family) *Store {
	return &Store{
		reader:       reader,
		family:       family,
		PollInterval: DefaultPollInterval,
		BatchSize:    DefaultBatchSize,
	}
}

// Subscribe delivers stored events in seq order.
func (s *Store) Subscribe(ctx context.Context, sink func(ir.Envelope)) error {
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	poll := s.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := s.reader.ReadEvents(ctx, s.family, after, batch)
		if err != nil {
			return fmt.Errorf("read %s events after seq %d: %w", s.familyName(), after, err)
		}
		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			sink(ev.Envelope())
			after = ev.Seq
		}
		if len(events) == batch {
			continue
		}

		if !s.Follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (s *Store) familyName() string {
	if s.family == "" {
		return "all"
	}
	return string(s.family)
}
