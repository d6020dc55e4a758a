// Package orchestrator wires the deposit and auction lifecycle managers to
// their event sources and to the outbound action submitter.
//
// ARCHITECTURE:
//
// Inbound:
// Each source is read by one subscriber goroutine. Envelopes are routed
// through a keyed dispatcher so that events for one entity are applied
// strictly in log order while distinct entities proceed concurrently.
//
// Outbound:
// Deposit notifications are queued on a second keyed dispatcher (the
// outbox), keyed by deposit address. The managers never wait on the
// submitter, and a deposit's notices are submitted in the order its
// transitions were committed.
//
// Exactly-once:
// Every notice carries a content-addressed ID and is claimed in the
// Journal before it reaches the submitter. Replaying a log whose notices
// are already journaled submits nothing.
package orchestrator
