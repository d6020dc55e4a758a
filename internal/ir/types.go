package ir

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Family identifies which event log an event belongs to.
type Family string

const (
	// FamilyDeposit is the deposit-custody event log.
	FamilyDeposit Family = "deposit"
	// FamilyAuction is the auction-house event log.
	FamilyAuction Family = "auction"
)

// EventName is the log name of an event, as emitted by the contract.
type EventName string

// Deposit family events.
const (
	EventCreated            EventName = "Created"
	EventFunded             EventName = "Funded"
	EventStartedLiquidation EventName = "StartedLiquidation"
	EventLiquidated         EventName = "Liquidated"
	EventRedeemed           EventName = "Redeemed"
)

// Auction family events.
const (
	EventAuctionCreated    EventName = "AuctionCreated"
	EventAuctionOfferTaken EventName = "AuctionOfferTaken"
	EventAuctionClosed     EventName = "AuctionClosed"
)

// Event is a sealed interface over the typed lifecycle events.
// Only the event structs declared in this package implement it.
type Event interface {
	// Name returns the log name of the event.
	Name() EventName
	// Family returns the event log the event belongs to.
	Family() Family
	// Key returns the address of the entity the event applies to.
	// Events sharing a key are applied strictly in log order.
	Key() common.Address

	eventMarker()
}

// Envelope is an event stamped with its position in the source log.
type Envelope struct {
	// Seq is the 1-based position of the event in its source log.
	Seq   int64
	Event Event
}

// Created is emitted when a new deposit is created.
type Created struct {
	Address   common.Address
	Timestamp int64
}

// Funded is emitted when a deposit's funding proof is accepted.
type Funded struct {
	Address   common.Address
	TxID      common.Hash
	Timestamp int64
}

// StartedLiquidation is emitted when a deposit enters liquidation.
type StartedLiquidation struct {
	Address   common.Address
	WasFraud  bool
	Timestamp int64
}

// Liquidated is emitted when a deposit's liquidation completes.
type Liquidated struct {
	Address   common.Address
	Timestamp int64
}

// Redeemed is emitted when a deposit is redeemed.
type Redeemed struct {
	Address   common.Address
	TxID      common.Hash
	Timestamp int64
}

// AuctionCreated is emitted when the auction house opens an auction.
type AuctionCreated struct {
	Token         common.Address
	AmountDesired *big.Int
	Auction       common.Address
}

// AuctionOfferTaken is emitted for each (possibly partial) fill of an auction.
type AuctionOfferTaken struct {
	Auction          common.Address
	Taker            common.Address
	TokenAccepted    common.Address
	AmountOffered    *big.Int
	CollateralSeized *big.Int
}

// AuctionClosed is emitted when an auction is closed.
type AuctionClosed struct {
	Auction common.Address
}

func (Created) Name() EventName            { return EventCreated }
func (Funded) Name() EventName             { return EventFunded }
func (StartedLiquidation) Name() EventName { return EventStartedLiquidation }
func (Liquidated) Name() EventName         { return EventLiquidated }
func (Redeemed) Name() EventName           { return EventRedeemed }
func (AuctionCreated) Name() EventName     { return EventAuctionCreated }
func (AuctionOfferTaken) Name() EventName  { return EventAuctionOfferTaken }
func (AuctionClosed) Name() EventName      { return EventAuctionClosed }

func (Created) Family() Family            { return FamilyDeposit }
func (Funded) Family() Family             { return FamilyDeposit }
func (StartedLiquidation) Family() Family { return FamilyDeposit }
func (Liquidated) Family() Family         { return FamilyDeposit }
func (Redeemed) Family() Family           { return FamilyDeposit }
func (AuctionCreated) Family() Family     { return FamilyAuction }
func (AuctionOfferTaken) Family() Family  { return FamilyAuction }
func (AuctionClosed) Family() Family      { return FamilyAuction }

func (e Created) Key() common.Address            { return e.Address }
func (e Funded) Key() common.Address             { return e.Address }
func (e StartedLiquidation) Key() common.Address { return e.Address }
func (e Liquidated) Key() common.Address         { return e.Address }
func (e Redeemed) Key() common.Address           { return e.Address }
func (e AuctionCreated) Key() common.Address     { return e.Auction }
func (e AuctionOfferTaken) Key() common.Address  { return e.Auction }
func (e AuctionClosed) Key() common.Address      { return e.Auction }

func (Created) eventMarker()            {}
func (Funded) eventMarker()             {}
func (StartedLiquidation) eventMarker() {}
func (Liquidated) eventMarker()         {}
func (Redeemed) eventMarker()           {}
func (AuctionCreated) eventMarker()     {}
func (AuctionOfferTaken) eventMarker()  {}
func (AuctionClosed) eventMarker()      {}
