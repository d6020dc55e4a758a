package store

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liquidator/internal/ir"
)

func TestAppendAndReadEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	events := []ir.Event{
		ir.Created{Address: depositAddr, Timestamp: 1},
		ir.AuctionCreated{Token: tokenAddr, AmountDesired: amount(1000), Auction: auctionAddr},
		ir.Funded{Address: depositAddr, TxID: common.HexToHash("0xabc"), Timestamp: 2},
	}
	for i, ev := range events {
		seq, err := s.AppendEvent(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}

	all, err := s.ReadEvents(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, got := range all {
		assert.Equal(t, int64(i+1), got.Seq)
		assert.Equal(t, events[i], got.Event)
		assert.Equal(t, events[i].Family(), got.Family)
	}

	deposits, err := s.ReadEvents(ctx, ir.FamilyDeposit, 0, 0)
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, int64(1), deposits[0].Seq)
	assert.Equal(t, int64(3), deposits[1].Seq)

	auctions, err := s.ReadEvents(ctx, ir.FamilyAuction, 0, 0)
	require.NoError(t, err)
	require.Len(t, auctions, 1)
	assert.Equal(t, ir.Envelope{Seq: 2, Event: events[1]}, auctions[0].Envelope())
}

func TestReadEventsAfterAndLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		_, err := s.AppendEvent(ctx, ir.Created{Address: depositAddr, Timestamp: int64(i)})
		require.NoError(t, err)
	}

	page, err := s.ReadEvents(ctx, ir.FamilyDeposit, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, int64(4), page[1].Seq)

	empty, err := s.ReadEvents(ctx, ir.FamilyDeposit, 5, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestIdenticalEventsAreKept(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := ir.Created{Address: depositAddr, Timestamp: 1}
	_, err := s.AppendEvent(ctx, ev)
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, ev)
	require.NoError(t, err)

	n, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the log is positional; repeats are distinct entries")
}

func TestAppendEventsTransactional(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.AppendEvents(ctx, []ir.Event{
		ir.Created{Address: depositAddr},
		ir.AuctionCreated{Token: tokenAddr, AmountDesired: nil, Auction: auctionAddr},
		ir.Liquidated{Address: depositAddr},
	})
	require.NoError(t, err, "nil amount encodes as zero")

	last, err := s.LastEventSeq(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	lastAuction, err := s.LastEventSeq(ctx, ir.FamilyAuction)
	require.NoError(t, err)
	assert.Equal(t, int64(2), lastAuction)
}

func TestAppendEventsRollsBackOnCancel(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.AppendEvents(ctx, []ir.Event{ir.Created{Address: depositAddr}})
	require.Error(t, err)

	n, err := s.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLastEventSeqEmpty(t *testing.T) {
	s := createTestStore(t)
	last, err := s.LastEventSeq(context.Background(), ir.FamilyDeposit)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
}

func TestStoredPayloadIsCanonical(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvent(ctx, ir.Created{Address: depositAddr, Timestamp: 7})
	require.NoError(t, err)

	var payload, key string
	err = s.db.QueryRow("SELECT payload, key FROM events WHERE seq = 1").Scan(&payload, &key)
	require.NoError(t, err)
	assert.Equal(t, `{"address":"`+depositAddr.Hex()+`","event":"Created","timestamp":7}`, payload)
	assert.Equal(t, depositAddr.Hex(), key)
}
