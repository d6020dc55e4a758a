// Package engine provides the dispatch machinery shared by the inbound
// event path and the outbound action path.
//
// ARCHITECTURE:
//
// Keyed Mailboxes:
// A Dispatcher owns one FIFO mailbox per live key. The first item for a
// key starts a worker goroutine for that key; the worker drains the
// mailbox and exits when it is empty, at which point the key is dropped.
// This gives:
// - Strict per-key ordering (items for a key run one at a time, in order)
// - Concurrency across keys (each key has its own worker)
// - No idle goroutines (a key costs nothing once drained)
//
// Error Handling:
// Handler errors never stop a mailbox. They are passed to the error hook
// (or logged) with full context and the worker moves on to the next item.
// Retrying would reorder the key's stream, so nothing is retried.
//
// Clock:
// Sources stamp envelopes with a monotonic logical clock so that log
// positions are explicit and replays are comparable.
package engine
