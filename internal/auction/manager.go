package auction

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/lifecycle"
)

// Store is the auction mirror.
type Store = lifecycle.Store[common.Address, Auction]

// View is the read-only auction mirror.
type View = lifecycle.View[common.Address, Auction]

// NewStore creates an empty auction store.
func NewStore() *Store {
	return lifecycle.New[common.Address, Auction]("auction")
}

// Manager applies auction events to a Store.
type Manager struct {
	store  *Store
	logger *slog.Logger
}

// NewManager creates a manager over store. A nil logger uses slog.Default().
func NewManager(store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Handle applies one auction event.
func (m *Manager) Handle(_ context.Context, env ir.Envelope) error {
	switch ev := env.Event.(type) {
	case ir.AuctionCreated:
		return m.created(ev)
	case ir.AuctionOfferTaken:
		return m.offerTaken(ev)
	case ir.AuctionClosed:
		return m.closed(ev.Auction)
	default:
		return fmt.Errorf("auction: unexpected event %T", env.Event)
	}
}

func (m *Manager) created(ev ir.AuctionCreated) error {
	if ev.AmountDesired == nil || ev.AmountDesired.Sign() < 0 {
		return lifecycle.NewInvalidTransition("auction.created", ev.Auction.Hex(),
			"amount desired %v must be non-negative", ev.AmountDesired)
	}

	_, err := m.store.Create(ev.Auction, func(a *Auction) {
		a.Address = ev.Auction
		a.Token = ev.Token
		a.Amount = new(big.Int).Set(ev.AmountDesired)
		a.State = Open
	})
	if err != nil {
		return err
	}
	m.logger.Debug("auction created",
		"auction", ev.Auction.Hex(),
		"token", ev.Token.Hex(),
		"amount", ev.AmountDesired.String(),
	)
	return nil
}

func (m *Manager) offerTaken(ev ir.AuctionOfferTaken) error {
	op := "auction." + string(ir.EventAuctionOfferTaken)

	if ev.AmountOffered == nil || ev.AmountOffered.Sign() < 0 {
		return lifecycle.NewInvalidTransition(op, ev.Auction.Hex(),
			"amount offered %v must be non-negative", ev.AmountOffered)
	}

	updated, err := m.store.Update(ev.Auction, func(a *Auction) error {
		step, ok := Next(a.State, ir.EventAuctionOfferTaken)
		if !ok {
			return lifecycle.NewInvalidTransition(op, ev.Auction.Hex(), "no transition from %s", a.State)
		}
		remaining := new(big.Int).Sub(a.Amount, ev.AmountOffered)
		if remaining.Sign() < 0 {
			return lifecycle.NewInvalidTransition(op, ev.Auction.Hex(),
				"offer %s exceeds remaining %s", ev.AmountOffered, a.Amount)
		}
		a.Amount = remaining
		a.State = step.To
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("auction offer taken",
		"auction", ev.Auction.Hex(),
		"taker", ev.Taker.Hex(),
		"offered", ev.AmountOffered.String(),
		"remaining", updated.Amount.String(),
	)
	return nil
}

func (m *Manager) closed(addr common.Address) error {
	var remaining *big.Int
	_, err := m.store.Update(addr, func(a *Auction) error {
		if _, ok := Next(a.State, ir.EventAuctionClosed); !ok {
			return lifecycle.NewInvalidTransition("auction."+string(ir.EventAuctionClosed), addr.Hex(),
				"no transition from %s", a.State)
		}
		remaining = a.Amount
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.store.Destroy(addr); err != nil {
		return err
	}
	m.logger.Debug("auction closed", "auction", addr.Hex(), "remaining", remaining.String())
	return nil
}
