package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liquidator/internal/engine"
	"github.com/roach88/liquidator/internal/ir"
)

func TestSequentialIDs(t *testing.T) {
	var gen engine.IDGenerator = NewSequentialIDs("bid")
	assert.Equal(t, "bid-1", gen.Generate())
	assert.Equal(t, "bid-2", gen.Generate())

	ids := gen.(*SequentialIDs)
	assert.Equal(t, int64(2), ids.Issued())
	ids.Reset()
	assert.Equal(t, "bid-1", ids.Generate())

	assert.Equal(t, "id-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDsConcurrent(t *testing.T) {
	gen := NewSequentialIDs("x")
	var wg sync.WaitGroup
	seen := sync.Map{}
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(gen.Generate(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), gen.Issued())
}

func TestAddr(t *testing.T) {
	assert.Equal(t, Addr(0xa1), Addr(0xa1))
	assert.NotEqual(t, Addr(1), Addr(2))
	assert.Equal(t, byte(0xa1), Addr(0xa1).Bytes()[19])
	assert.Equal(t, byte(0x02), Hash(2).Bytes()[31])
	assert.Equal(t, "7", Amount(7).String())
}

func TestRecorderRecordsAndFails(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	boom := errors.New("boom")
	r.FailFor(Addr(2), boom)

	require.NoError(t, r.SubmitDepositLiquidationStartedNotice(ctx, Addr(1)))
	require.NoError(t, r.SubmitDepositLiquidatedNotice(ctx, Addr(1)))
	require.ErrorIs(t, r.SubmitDepositLiquidatedNotice(ctx, Addr(2)), boom)
	require.NoError(t, r.SubmitBid(ctx, Addr(3), Amount(10), Amount(1)))

	calls := r.Calls()
	require.Len(t, calls, 4)
	assert.ErrorIs(t, calls[2].Err, boom)
	assert.Equal(t, "10", calls[3].BidAmount.String())

	assert.Equal(t, []ir.ActionKind{ir.ActionLiquidationStartedNotice, ir.ActionLiquidatedNotice}, r.Kinds(Addr(1)))
	assert.Equal(t, 2, r.Count(ir.ActionLiquidatedNotice))
}

func TestRecorderHold(t *testing.T) {
	r := NewRecorder()
	release := r.Hold()

	done := make(chan error, 1)
	go func() {
		done <- r.SubmitDepositLiquidatedNotice(context.Background(), Addr(1))
	}()

	assert.Eventually(t, func() bool { return r.Waiting() == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, r.Calls())

	release()
	release() // idempotent
	require.NoError(t, <-done)
	assert.Len(t, r.Calls(), 1)
	assert.Equal(t, 0, r.Waiting())
}

func TestRecorderHoldHonoursCancel(t *testing.T) {
	r := NewRecorder()
	defer r.Hold()()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.SubmitBid(ctx, Addr(1), Amount(1), Amount(0))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.Calls())
}
