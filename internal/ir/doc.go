// Package ir provides the typed records that flow through the liquidator:
// inbound lifecycle events, outbound actions, and the canonical encoding
// used to derive content-addressed action identities.
//
// This package contains type definitions and encoding only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - quantities are *big.Int, encoded as decimal strings
//   - Addresses are go-ethereum common.Address values, encoded as EIP-55 hex
//   - All JSON/YAML tags use snake_case
//   - Ordering uses the log sequence number (Envelope.Seq), never timestamps
package ir
