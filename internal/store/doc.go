// Package store provides SQLite-backed durable storage for the liquidator.
//
// The store holds two append-only tables:
//   - events: the materialised contract event log (deposit and auction
//     families), read back in seq order for replay
//   - actions: the action journal, recording every outbound notice and bid
//     with its submission status
//
// # Critical Patterns
//
// Logical ordering:
//   - All reads order by seq INTEGER, NEVER by timestamps
//   - Replaying the table yields the same event order every time
//
// Exactly-once notices:
//   - actions.id is UNIQUE and notice IDs are content-addressed
//     (see ir.NoticeID)
//   - ClaimAction inserts with ON CONFLICT DO NOTHING and reports whether
//     this caller won the claim
//
// Canonical payloads:
//   - Event payloads and action args are RFC 8785 canonical JSON
//     (ir.MarshalCanonical), so stored bytes are stable
//
// # Database Configuration
//
// On-disk databases run in WAL mode with synchronous=NORMAL and a
// 5-second busy timeout, checked after they are set. ":memory:" databases
// (used by the harness) only get the timeout.
package store
