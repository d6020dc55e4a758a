package deposit

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/lifecycle"
)

var (
	addrA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	addrB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	txid  = common.HexToHash("0x01")
)

// fakeNotifier records notifications and the stored state observed at the
// moment each one was raised.
type fakeNotifier struct {
	mu       sync.Mutex
	store    *Store
	calls    []string
	observed []State
}

func (f *fakeNotifier) NotifyDepositStartedLiquidation(_ context.Context, addr common.Address) {
	f.record("started:"+addr.Hex(), addr)
}

func (f *fakeNotifier) NotifyDepositLiquidated(_ context.Context, addr common.Address) {
	f.record("liquidated:"+addr.Hex(), addr)
}

func (f *fakeNotifier) record(call string, addr common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if d, err := f.store.Read(addr); err == nil {
		f.observed = append(f.observed, d.State)
	}
}

func newTestManager() (*Manager, *Store, *fakeNotifier) {
	store := NewStore()
	n := &fakeNotifier{store: store}
	return NewManager(store, n, nil), store, n
}

func handle(t *testing.T, m *Manager, events ...ir.Event) error {
	t.Helper()
	var last error
	for i, ev := range events {
		last = m.Handle(context.Background(), ir.Envelope{Seq: int64(i + 1), Event: ev})
	}
	return last
}

func requireState(t *testing.T, store *Store, addr common.Address, want State) {
	t.Helper()
	d, err := store.Read(addr)
	require.NoError(t, err)
	assert.Equal(t, want, d.State)
}

func TestManagerHappyPath(t *testing.T) {
	m, store, n := newTestManager()

	require.NoError(t, handle(t, m, ir.Created{Address: addrA, Timestamp: 1}))
	requireState(t, store, addrA, Initialized)

	require.NoError(t, handle(t, m, ir.Funded{Address: addrA, TxID: txid, Timestamp: 2}))
	requireState(t, store, addrA, Active)

	require.NoError(t, handle(t, m, ir.StartedLiquidation{Address: addrA, WasFraud: true, Timestamp: 3}))
	requireState(t, store, addrA, StartedLiquidation)
	assert.Equal(t, []string{"started:" + addrA.Hex()}, n.calls)

	require.NoError(t, handle(t, m, ir.Liquidated{Address: addrA, Timestamp: 4}))
	assert.Equal(t, []string{"started:" + addrA.Hex(), "liquidated:" + addrA.Hex()}, n.calls)

	_, err := store.Read(addrA)
	assert.True(t, lifecycle.IsNotFound(err), "liquidated deposit must be removed")
	assert.Equal(t, 0, store.Count())
}

func TestManagerNotifiesAfterCommit(t *testing.T) {
	m, _, n := newTestManager()

	require.NoError(t, handle(t, m,
		ir.Created{Address: addrA},
		ir.Funded{Address: addrA, TxID: txid},
		ir.StartedLiquidation{Address: addrA},
		ir.Liquidated{Address: addrA},
	))

	assert.Equal(t, []State{StartedLiquidation, Liquidated}, n.observed)
}

func TestManagerDuplicateCreate(t *testing.T) {
	m, store, _ := newTestManager()

	require.NoError(t, handle(t, m, ir.Created{Address: addrA}, ir.Funded{Address: addrA, TxID: txid}))

	err := handle(t, m, ir.Created{Address: addrA})
	assert.True(t, lifecycle.IsAlreadyExists(err))
	requireState(t, store, addrA, Active)
}

func TestManagerEventForUnknownDeposit(t *testing.T) {
	events := []ir.Event{
		ir.Funded{Address: addrA, TxID: txid},
		ir.StartedLiquidation{Address: addrA},
		ir.Liquidated{Address: addrA},
		ir.Redeemed{Address: addrA, TxID: txid},
	}

	for _, ev := range events {
		t.Run(string(ev.Name()), func(t *testing.T) {
			m, store, n := newTestManager()
			err := handle(t, m, ev)
			assert.True(t, lifecycle.IsNotFound(err))
			assert.Equal(t, 0, store.Count())
			assert.Empty(t, n.calls)
		})
	}
}

func TestManagerInvalidTransitions(t *testing.T) {
	tests := []struct {
		name   string
		setup  []ir.Event
		event  ir.Event
		expect State
	}{
		{"funded twice", []ir.Event{ir.Created{Address: addrA}, ir.Funded{Address: addrA, TxID: txid}}, ir.Funded{Address: addrA, TxID: txid}, Active},
		{"liquidation before funding", []ir.Event{ir.Created{Address: addrA}}, ir.StartedLiquidation{Address: addrA}, Initialized},
		{"liquidated while active", []ir.Event{ir.Created{Address: addrA}, ir.Funded{Address: addrA, TxID: txid}}, ir.Liquidated{Address: addrA}, Active},
		{"liquidated while initialized", []ir.Event{ir.Created{Address: addrA}}, ir.Liquidated{Address: addrA}, Initialized},
		{"funded during liquidation", []ir.Event{ir.Created{Address: addrA}, ir.Funded{Address: addrA, TxID: txid}, ir.StartedLiquidation{Address: addrA}}, ir.Funded{Address: addrA, TxID: txid}, StartedLiquidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, n := newTestManager()
			require.NoError(t, handle(t, m, tt.setup...))
			before := len(n.calls)

			err := handle(t, m, tt.event)
			require.Error(t, err)
			assert.True(t, lifecycle.IsInvalidTransition(err))
			requireState(t, store, addrA, tt.expect)
			assert.Len(t, n.calls, before, "invalid transition must not notify")
		})
	}
}

func TestManagerStartedLiquidationNotifiesOnce(t *testing.T) {
	m, _, n := newTestManager()

	require.NoError(t, handle(t, m,
		ir.Created{Address: addrA},
		ir.Funded{Address: addrA, TxID: txid},
		ir.StartedLiquidation{Address: addrA},
	))
	err := handle(t, m, ir.StartedLiquidation{Address: addrA})
	assert.True(t, lifecycle.IsInvalidTransition(err))

	assert.Equal(t, []string{"started:" + addrA.Hex()}, n.calls)
}

func TestManagerRedeemedFromAnyLiveState(t *testing.T) {
	tests := []struct {
		name  string
		setup []ir.Event
	}{
		{"initialized", []ir.Event{ir.Created{Address: addrA}}},
		{"active", []ir.Event{ir.Created{Address: addrA}, ir.Funded{Address: addrA, TxID: txid}}},
		{"started liquidation", []ir.Event{ir.Created{Address: addrA}, ir.Funded{Address: addrA, TxID: txid}, ir.StartedLiquidation{Address: addrA}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, n := newTestManager()
			require.NoError(t, handle(t, m, tt.setup...))
			before := len(n.calls)

			require.NoError(t, handle(t, m, ir.Redeemed{Address: addrA, TxID: txid}))
			_, err := store.Read(addrA)
			assert.True(t, lifecycle.IsNotFound(err))
			assert.Len(t, n.calls, before, "redemption must not notify")
		})
	}
}

func TestManagerAfterRemovalEventsAreNotFound(t *testing.T) {
	m, _, n := newTestManager()
	require.NoError(t, handle(t, m, ir.Created{Address: addrA}, ir.Redeemed{Address: addrA, TxID: txid}))

	err := handle(t, m, ir.Funded{Address: addrA, TxID: txid})
	assert.True(t, lifecycle.IsNotFound(err))
	assert.Empty(t, n.calls)
}

func TestManagerKeysAreIndependent(t *testing.T) {
	m, store, _ := newTestManager()

	require.NoError(t, handle(t, m,
		ir.Created{Address: addrA},
		ir.Created{Address: addrB},
		ir.Funded{Address: addrB, TxID: txid},
	))

	requireState(t, store, addrA, Initialized)
	requireState(t, store, addrB, Active)
	assert.Equal(t, 2, store.Count())
}

func TestManagerRejectsAuctionEvents(t *testing.T) {
	m, _, _ := newTestManager()
	err := handle(t, m, ir.AuctionClosed{Auction: addrA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event")
}

func TestManagerConcurrentCreateSameAddress(t *testing.T) {
	m, store, n := newTestManager()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Handle(context.Background(), ir.Envelope{
				Seq:   int64(i + 1),
				Event: ir.Created{Address: addrA, Timestamp: int64(i + 1)},
			})
		}()
	}
	wg.Wait()

	created, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case lifecycle.IsAlreadyExists(err):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicates)
	assert.Equal(t, 1, store.Count())
	assert.Len(t, store.List(), 1)
	requireState(t, store, addrA, Initialized)
	assert.Empty(t, n.calls)
}
