// Package auction mirrors collateral auctions opened by the auction house.
//
// An auction is created Open with the full amount desired, moves to Active
// on its first (possibly partial) fill, and is removed when it closes.
// The remaining amount only decreases and is never negative.
package auction
