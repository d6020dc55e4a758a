package lifecycle

import (
	"iter"
	"slices"
	"sync"
)

// View is the read-only face of a Store.
type View[K comparable, T any] interface {
	Read(key K) (T, error)
	List() []T
	Count() int
	All() iter.Seq2[K, T]
}

// Store is a keyed, concurrency-safe collection of entities.
//
// The zero value is not usable; construct with New.
type Store[K comparable, T any] struct {
	name string

	mu      sync.RWMutex
	entries map[K]*entry[K, T]
	nextOrd uint64
}

// entry holds one live entity. The mutex serializes all operations on the
// key; destroyed is set once the entry has been unlinked from the map so
// that holders of a stale pointer observe the removal.
type entry[K comparable, T any] struct {
	mu        sync.Mutex
	key       K
	ord       uint64
	value     T
	destroyed bool
}

// New creates an empty store. The name prefixes error operations
// (e.g. "deposit.update").
func New[K comparable, T any](name string) *Store[K, T] {
	return &Store[K, T]{
		name:    name,
		entries: make(map[K]*entry[K, T]),
	}
}

// Name returns the store name.
func (s *Store[K, T]) Name() string {
	return s.name
}

// Create inserts a new entity for key. init, if non-nil, populates the zero
// value before it becomes visible. Returns ErrAlreadyExists if key is live.
func (s *Store[K, T]) Create(key K, init func(*T)) (T, error) {
	var value T
	if init != nil {
		init(&value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		var zero T
		return zero, NewAlreadyExists(s.op("create"), key)
	}

	s.nextOrd++
	s.entries[key] = &entry[K, T]{key: key, ord: s.nextOrd, value: value}
	return value, nil
}

// Read returns a snapshot of the entity for key.
func (s *Store[K, T]) Read(key K) (T, error) {
	e := s.lookup(key)
	if e == nil {
		var zero T
		return zero, NewNotFound(s.op("read"), key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		var zero T
		return zero, NewNotFound(s.op("read"), key)
	}
	return e.value, nil
}

// Update applies mutate to a working copy of the entity for key and commits
// the copy only if mutate returns nil. The committed snapshot is returned.
//
// mutate runs while the key is locked; it must not call back into the
// store for the same key.
func (s *Store[K, T]) Update(key K, mutate func(*T) error) (T, error) {
	var zero T

	e := s.lookup(key)
	if e == nil {
		return zero, NewNotFound(s.op("update"), key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return zero, NewNotFound(s.op("update"), key)
	}

	working := e.value
	if err := mutate(&working); err != nil {
		return zero, err
	}
	e.value = working
	return working, nil
}

// Destroy removes the entity for key.
func (s *Store[K, T]) Destroy(key K) error {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if !ok {
		return NewNotFound(s.op("destroy"), key)
	}

	// Wait for any in-flight operation on the key, then mark the entry so
	// stale holders see it as gone.
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()
	return nil
}

// List returns a snapshot of all live entities in creation order.
func (s *Store[K, T]) List() []T {
	entries := s.snapshot()
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if v, ok := e.load(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of live entities.
func (s *Store[K, T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All iterates over a snapshot of the live entities in creation order.
// Entities destroyed after the snapshot is taken are skipped.
func (s *Store[K, T]) All() iter.Seq2[K, T] {
	entries := s.snapshot()
	return func(yield func(K, T) bool) {
		for _, e := range entries {
			v, ok := e.load()
			if !ok {
				continue
			}
			if !yield(e.key, v) {
				return
			}
		}
	}
}

func (s *Store[K, T]) lookup(key K) *entry[K, T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key]
}

func (s *Store[K, T]) snapshot() []*entry[K, T] {
	s.mu.RLock()
	entries := make([]*entry[K, T], 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *entry[K, T]) int {
		switch {
		case a.ord < b.ord:
			return -1
		case a.ord > b.ord:
			return 1
		}
		return 0
	})
	return entries
}

func (s *Store[K, T]) op(name string) string {
	return s.name + "." + name
}

func (e *entry[K, T]) load() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		var zero T
		return zero, false
	}
	return e.value, true
}
