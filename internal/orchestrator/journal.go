package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/liquidator/internal/ir"
)

// Journal records outbound actions. *store.Store implements it durably.
type Journal interface {
	// ClaimAction records a as pending. It returns false if an action with
	// the same ID was claimed before, in which case a must not be submitted.
	ClaimAction(ctx context.Context, a ir.Action) (bool, error)

	// SettleAction records the outcome of submitting a claimed action.
	SettleAction(ctx context.Context, id string, submitErr error) error
}

// JournalEntry is one action recorded by a MemoryJournal.
type JournalEntry struct {
	Action ir.Action
	Status ir.ActionStatus
	Error  string
}

// MemoryJournal is a process-local Journal. It deduplicates within one run
// only; use the SQLite store to deduplicate across restarts.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []JournalEntry
	index   map[string]int
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{index: make(map[string]int)}
}

// ClaimAction implements Journal.
func (j *MemoryJournal) ClaimAction(_ context.Context, a ir.Action) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.index[a.ID]; ok {
		return false, nil
	}
	j.index[a.ID] = len(j.entries)
	j.entries = append(j.entries, JournalEntry{Action: a, Status: ir.StatusPending})
	return true, nil
}

// SettleAction implements Journal.
func (j *MemoryJournal) SettleAction(_ context.Context, id string, submitErr error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	i, ok := j.index[id]
	if !ok {
		return fmt.Errorf("settle action %s: not claimed", id)
	}
	if submitErr != nil {
		j.entries[i].Status = ir.StatusFailed
		j.entries[i].Error = submitErr.Error()
	} else {
		j.entries[i].Status = ir.StatusSubmitted
	}
	return nil
}

// Entries returns a copy of the journal in claim order.
func (j *MemoryJournal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JournalEntry(nil), j.entries...)
}
