package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Handler processes one item for key.
type Handler[K comparable, T any] func(ctx context.Context, key K, item T) error

// ErrorHook observes a handler failure. It runs on the key's worker
// goroutine before the next item for that key is started.
type ErrorHook[K comparable, T any] func(ctx context.Context, key K, item T, err error)

// Option configures a Dispatcher.
type Option[K comparable, T any] func(*Dispatcher[K, T])

// WithErrorHook sets the hook called for each handler error.
// Without a hook, errors are logged at error level.
func WithErrorHook[K comparable, T any](hook ErrorHook[K, T]) Option[K, T] {
	return func(d *Dispatcher[K, T]) {
		d.onError = hook
	}
}

// WithLogger sets the dispatcher logger. Default: slog.Default().
func WithLogger[K comparable, T any](logger *slog.Logger) Option[K, T] {
	return func(d *Dispatcher[K, T]) {
		d.logger = logger
	}
}

// Dispatcher runs a handler over items with per-key ordering.
//
// Items dispatched for the same key are handled one at a time in dispatch
// order. Items for different keys are handled concurrently. A key's worker
// goroutine exists only while its mailbox is non-empty.
type Dispatcher[K comparable, T any] struct {
	name    string
	handler Handler[K, T]
	onError ErrorHook[K, T]
	logger  *slog.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	boxes   map[K]*mailbox[job[T]]
	pending int // queued plus in-flight items
	closed  bool
}

type job[T any] struct {
	ctx  context.Context
	item T
}

// NewDispatcher creates a dispatcher. The name appears in log output.
func NewDispatcher[K comparable, T any](name string, handler Handler[K, T], opts ...Option[K, T]) *Dispatcher[K, T] {
	d := &Dispatcher[K, T]{
		name:    name,
		handler: handler,
		logger:  slog.Default(),
		boxes:   make(map[K]*mailbox[job[T]]),
	}
	d.idle = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch queues item for key and returns immediately.
// ctx is passed to the handler; cancelling it does not remove the item.
// Returns ErrClosed after Close.
func (d *Dispatcher[K, T]) Dispatch(ctx context.Context, key K, item T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	box, running := d.boxes[key]
	if !running {
		box = newMailbox[job[T]]()
		d.boxes[key] = box
	}
	box.push(job[T]{ctx: ctx, item: item})
	d.pending++

	if !running {
		go d.drain(key, box)
	}
	return nil
}

// drain is the worker loop for one key. It exits, and drops the key, as
// soon as the mailbox is observed empty under the dispatcher lock, so a
// concurrent Dispatch either lands in this mailbox or starts a new worker.
func (d *Dispatcher[K, T]) drain(key K, box *mailbox[job[T]]) {
	for {
		d.mu.Lock()
		j, ok := box.pop()
		if !ok {
			delete(d.boxes, key)
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		d.run(key, j)

		d.mu.Lock()
		d.pending--
		if d.pending == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}
}

func (d *Dispatcher[K, T]) run(key K, j job[T]) {
	err := d.handler(j.ctx, key, j.item)
	if err == nil {
		return
	}
	if d.onError != nil {
		d.onError(j.ctx, key, j.item, err)
		return
	}
	d.logger.Error("dispatch failed",
		"dispatcher", d.name,
		"key", key,
		"error", err,
	)
}

// Flush blocks until every dispatched item has been handled.
// Must not be called from a handler of the same dispatcher.
func (d *Dispatcher[K, T]) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.pending > 0 {
		d.idle.Wait()
	}
}

// Close stops accepting new items. Items already queued are still handled.
func (d *Dispatcher[K, T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Pending returns the number of queued plus in-flight items.
func (d *Dispatcher[K, T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
