// Package deposit mirrors the lifecycle of custodial deposits and raises
// risk-manager notifications on liquidation transitions.
//
// The Manager is a reducer over the deposit event log: each event is
// checked against the transition table (Next), committed to the store, and
// for StartedLiquidation and Liquidated a notification is raised exactly
// once after the commit. Deposits are removed from the store when they
// are redeemed or liquidated.
package deposit
