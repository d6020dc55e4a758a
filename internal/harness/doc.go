// Package harness runs conformance scenarios against the orchestrator.
//
// # Scenario Format
//
// Scenarios are YAML files. Steps are event records, in the same shape as
// event log files, or bids:
//
//	name: liquidation_notices
//	description: "A liquidated deposit produces both notices once"
//	failures:
//	  - target: "0x0000000000000000000000000000000000000002"
//	    error: "risk manager unavailable"
//	steps:
//	  - event: Created
//	    address: "0x0000000000000000000000000000000000000001"
//	  - bid:
//	      auction: "0x0000000000000000000000000000000000000010"
//	      amount: "100"
//	      min_collateral: "1"
//	assertions:
//	  - type: action_order
//	    target: "0x0000000000000000000000000000000000000001"
//	    kinds: [deposit_liquidation_started_notice, deposit_liquidated_notice]
//	  - type: final_state
//	    family: auction
//	    address: "0x0000000000000000000000000000000000000010"
//	    expect: { state: Active, amount: "700" }
//
// Quote addresses and amounts: unquoted hex and large integers are read
// as YAML numbers.
//
// # Assertion Types
//
//   - action_contains: an action of kind was submitted (optionally for target)
//   - action_order: kinds were submitted in order, gaps allowed
//   - action_count: kind was submitted exactly count times
//   - final_state: an entity has the expected fields, or is absent
//   - store_count: a mirror holds count live entities
//   - error_count: count events were rejected (optionally with code)
//
// # Deterministic Runs
//
// Each run uses a fresh orchestrator, a fresh in-memory SQLite journal and
// sequential bid IDs, and flushes the orchestrator after every step. The
// resulting trace is identical across runs and can be compared against a
// golden file.
package harness
