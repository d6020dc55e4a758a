package ir

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Record is the flat wire form of an Event, used by log files, the SQLite
// event table, and harness scenarios.
//
// Only the fields relevant to Event are populated. Quantities are decimal
// strings so that no float ever enters the pipeline.
type Record struct {
	Event     string `yaml:"event" json:"event"`
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
	Timestamp int64  `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	TxID      string `yaml:"txid,omitempty" json:"txid,omitempty"`
	WasFraud  bool   `yaml:"was_fraud,omitempty" json:"was_fraud,omitempty"`

	Token            string `yaml:"token,omitempty" json:"token,omitempty"`
	AmountDesired    string `yaml:"amount_desired,omitempty" json:"amount_desired,omitempty"`
	Auction          string `yaml:"auction,omitempty" json:"auction,omitempty"`
	Taker            string `yaml:"taker,omitempty" json:"taker,omitempty"`
	TokenAccepted    string `yaml:"token_accepted,omitempty" json:"token_accepted,omitempty"`
	AmountOffered    string `yaml:"amount_offered,omitempty" json:"amount_offered,omitempty"`
	CollateralSeized string `yaml:"collateral_seized,omitempty" json:"collateral_seized,omitempty"`
}

// RecordOf flattens an Event into its wire form.
func RecordOf(ev Event) Record {
	switch e := ev.(type) {
	case Created:
		return Record{Event: string(EventCreated), Address: e.Address.Hex(), Timestamp: e.Timestamp}
	case Funded:
		return Record{Event: string(EventFunded), Address: e.Address.Hex(), TxID: e.TxID.Hex(), Timestamp: e.Timestamp}
	case StartedLiquidation:
		return Record{Event: string(EventStartedLiquidation), Address: e.Address.Hex(), WasFraud: e.WasFraud, Timestamp: e.Timestamp}
	case Liquidated:
		return Record{Event: string(EventLiquidated), Address: e.Address.Hex(), Timestamp: e.Timestamp}
	case Redeemed:
		return Record{Event: string(EventRedeemed), Address: e.Address.Hex(), TxID: e.TxID.Hex(), Timestamp: e.Timestamp}
	case AuctionCreated:
		return Record{
			Event:         string(EventAuctionCreated),
			Token:         e.Token.Hex(),
			AmountDesired: amountString(e.AmountDesired),
			Auction:       e.Auction.Hex(),
		}
	case AuctionOfferTaken:
		return Record{
			Event:            string(EventAuctionOfferTaken),
			Auction:          e.Auction.Hex(),
			Taker:            e.Taker.Hex(),
			TokenAccepted:    e.TokenAccepted.Hex(),
			AmountOffered:    amountString(e.AmountOffered),
			CollateralSeized: amountString(e.CollateralSeized),
		}
	case AuctionClosed:
		return Record{Event: string(EventAuctionClosed), Auction: e.Auction.Hex()}
	default:
		return Record{}
	}
}

// ToEvent validates the record and converts it into a typed Event.
func (r Record) ToEvent() (Event, error) {
	switch EventName(r.Event) {
	case EventCreated:
		addr, err := parseAddress("address", r.Address)
		if err != nil {
			return nil, r.fail(err)
		}
		return Created{Address: addr, Timestamp: r.Timestamp}, nil

	case EventFunded:
		addr, err := parseAddress("address", r.Address)
		if err != nil {
			return nil, r.fail(err)
		}
		txid, err := parseHash("txid", r.TxID)
		if err != nil {
			return nil, r.fail(err)
		}
		return Funded{Address: addr, TxID: txid, Timestamp: r.Timestamp}, nil

	case EventStartedLiquidation:
		addr, err := parseAddress("address", r.Address)
		if err != nil {
			return nil, r.fail(err)
		}
		return StartedLiquidation{Address: addr, WasFraud: r.WasFraud, Timestamp: r.Timestamp}, nil

	case EventLiquidated:
		addr, err := parseAddress("address", r.Address)
		if err != nil {
			return nil, r.fail(err)
		}
		return Liquidated{Address: addr, Timestamp: r.Timestamp}, nil

	case EventRedeemed:
		addr, err := parseAddress("address", r.Address)
		if err != nil {
			return nil, r.fail(err)
		}
		txid, err := parseHash("txid", r.TxID)
		if err != nil {
			return nil, r.fail(err)
		}
		return Redeemed{Address: addr, TxID: txid, Timestamp: r.Timestamp}, nil

	case EventAuctionCreated:
		token, err := parseAddress("token", r.Token)
		if err != nil {
			return nil, r.fail(err)
		}
		amount, err := parseAmount("amount_desired", r.AmountDesired)
		if err != nil {
			return nil, r.fail(err)
		}
		auction, err := parseAddress("auction", r.Auction)
		if err != nil {
			return nil, r.fail(err)
		}
		return AuctionCreated{Token: token, AmountDesired: amount, Auction: auction}, nil

	case EventAuctionOfferTaken:
		auction, err := parseAddress("auction", r.Auction)
		if err != nil {
			return nil, r.fail(err)
		}
		taker, err := parseAddress("taker", r.Taker)
		if err != nil {
			return nil, r.fail(err)
		}
		token, err := parseAddress("token_accepted", r.TokenAccepted)
		if err != nil {
			return nil, r.fail(err)
		}
		offered, err := parseAmount("amount_offered", r.AmountOffered)
		if err != nil {
			return nil, r.fail(err)
		}
		seized, err := parseAmount("collateral_seized", r.CollateralSeized)
		if err != nil {
			return nil, r.fail(err)
		}
		return AuctionOfferTaken{
			Auction:          auction,
			Taker:            taker,
			TokenAccepted:    token,
			AmountOffered:    offered,
			CollateralSeized: seized,
		}, nil

	case EventAuctionClosed:
		auction, err := parseAddress("auction", r.Auction)
		if err != nil {
			return nil, r.fail(err)
		}
		return AuctionClosed{Auction: auction}, nil

	case "":
		return nil, fmt.Errorf("record: event name is required")

	default:
		return nil, fmt.Errorf("record: unknown event %q", r.Event)
	}
}

// MarshalRecord encodes a record as canonical JSON.
// Used for the SQLite event table so stored payloads are byte-stable.
func MarshalRecord(r Record) ([]byte, error) {
	return MarshalCanonical(r.fields())
}

// UnmarshalRecord decodes a record previously written by MarshalRecord.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, nil
}

// fields returns the non-empty record fields keyed by their wire names.
func (r Record) fields() map[string]any {
	m := map[string]any{"event": r.Event}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("address", r.Address)
	put("txid", r.TxID)
	put("token", r.Token)
	put("amount_desired", r.AmountDesired)
	put("auction", r.Auction)
	put("taker", r.Taker)
	put("token_accepted", r.TokenAccepted)
	put("amount_offered", r.AmountOffered)
	put("collateral_seized", r.CollateralSeized)
	if r.Timestamp != 0 {
		m["timestamp"] = r.Timestamp
	}
	if r.WasFraud {
		m["was_fraud"] = true
	}
	return m
}

func (r Record) fail(err error) error {
	return fmt.Errorf("record %s: %w", r.Event, err)
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(field, s string) (common.Hash, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(hex) != 2*common.HashLength || strings.IndexFunc(hex, notHexDigit) >= 0 {
		return common.Hash{}, fmt.Errorf("%s: invalid hash %q", field, s)
	}
	return common.HexToHash(s), nil
}

func notHexDigit(r rune) bool {
	return !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F')
}

// ParseAmount parses a base-10 integer quantity.
func ParseAmount(s string) (*big.Int, error) {
	return parseAmount("amount", s)
}

func parseAmount(field, s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, s)
	}
	return n, nil
}

func amountString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
