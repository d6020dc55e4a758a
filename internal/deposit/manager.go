package deposit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/lifecycle"
)

// Store is the deposit mirror.
type Store = lifecycle.Store[common.Address, Deposit]

// View is the read-only deposit mirror.
type View = lifecycle.View[common.Address, Deposit]

// NewStore creates an empty deposit store.
func NewStore() *Store {
	return lifecycle.New[common.Address, Deposit]("deposit")
}

// Notifier receives the side effects of deposit transitions.
// Implementations must not block; the orchestrator queues the request and
// returns immediately.
type Notifier interface {
	NotifyDepositStartedLiquidation(ctx context.Context, addr common.Address)
	NotifyDepositLiquidated(ctx context.Context, addr common.Address)
}

// Manager applies deposit events to a Store.
//
// Events for one address must be delivered sequentially and in log order;
// events for distinct addresses may be handled concurrently.
type Manager struct {
	store    *Store
	notifier Notifier
	logger   *slog.Logger
}

// NewManager creates a manager over store that reports to notifier.
// A nil logger uses slog.Default().
func NewManager(store *Store, notifier Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, notifier: notifier, logger: logger}
}

// Handle applies one deposit event. Errors are *lifecycle.Error values;
// the store is left unchanged when an error is returned.
func (m *Manager) Handle(ctx context.Context, env ir.Envelope) error {
	switch ev := env.Event.(type) {
	case ir.Created:
		return m.created(ev.Address)
	case ir.Funded:
		_, err := m.transition(ev.Address, ir.EventFunded)
		return err
	case ir.StartedLiquidation:
		return m.startedLiquidation(ctx, ev.Address)
	case ir.Liquidated:
		return m.liquidated(ctx, ev.Address)
	case ir.Redeemed:
		return m.redeemed(ev.Address)
	default:
		return fmt.Errorf("deposit: unexpected event %T", env.Event)
	}
}

func (m *Manager) created(addr common.Address) error {
	_, err := m.store.Create(addr, func(d *Deposit) {
		d.Address = addr
		d.State = Initialized
	})
	if err != nil {
		return err
	}
	m.logger.Debug("deposit created", "address", addr.Hex())
	return nil
}

func (m *Manager) startedLiquidation(ctx context.Context, addr common.Address) error {
	if _, err := m.transition(addr, ir.EventStartedLiquidation); err != nil {
		return err
	}
	m.notifier.NotifyDepositStartedLiquidation(ctx, addr)
	return nil
}

func (m *Manager) liquidated(ctx context.Context, addr common.Address) error {
	step, err := m.transition(addr, ir.EventLiquidated)
	if err != nil {
		return err
	}
	m.notifier.NotifyDepositLiquidated(ctx, addr)
	if step.Remove {
		return m.store.Destroy(addr)
	}
	return nil
}

func (m *Manager) redeemed(addr common.Address) error {
	step, err := m.transition(addr, ir.EventRedeemed)
	if err != nil {
		return err
	}
	if step.Remove {
		return m.store.Destroy(addr)
	}
	return nil
}

// transition validates event against the table and commits the new state.
func (m *Manager) transition(addr common.Address, event ir.EventName) (Step, error) {
	var (
		step Step
		from State
	)
	_, err := m.store.Update(addr, func(d *Deposit) error {
		s, ok := Next(d.State, event)
		if !ok {
			return lifecycle.NewInvalidTransition("deposit."+string(event), addr.Hex(),
				"no transition from %s", d.State)
		}
		from, step = d.State, s
		d.State = s.To
		return nil
	})
	if err != nil {
		return Step{}, err
	}

	m.logger.Debug("deposit transition",
		"address", addr.Hex(),
		"event", event,
		"from", from,
		"to", step.To,
		"remove", step.Remove,
	)
	return step, nil
}
