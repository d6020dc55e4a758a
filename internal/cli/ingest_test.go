package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liquidator/internal/ir"
	"github.com/roach88/liquidator/internal/store"
	"github.com/roach88/liquidator/internal/testutil"
)

func TestIngestAppendsEvents(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "liquidator.db")
	logPath := writeEventLog(t, dir, "events.yaml",
		ir.Created{Address: testutil.Addr(1)},
		ir.AuctionCreated{Token: testutil.Addr(0x70), AmountDesired: testutil.Amount(100), Auction: testutil.Addr(0x10)},
		ir.Funded{Address: testutil.Addr(1), TxID: testutil.Hash(1)},
	)

	stdout, _, err := execute(t, "ingest", "--db", dbPath, logPath)
	require.NoError(t, err)
	assert.Equal(t, "Appended 3 event(s): 2 deposit, 1 auction\n", stdout)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	events, err := st.ReadEvents(context.Background(), ir.FamilyDeposit, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ir.Created{Address: testutil.Addr(1)}, events[0].Event)
	assert.Equal(t, ir.EventFunded, events[1].Event.Name())
}

func TestIngestTwiceAppends(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "liquidator.db")
	first := writeEventLog(t, dir, "first.jsonl", ir.Created{Address: testutil.Addr(1)})
	second := writeEventLog(t, dir, "second.jsonl",
		ir.Created{Address: testutil.Addr(2)},
		ir.AuctionClosed{Auction: testutil.Addr(0x10)},
	)

	_, _, err := execute(t, "ingest", "--db", dbPath, first)
	require.NoError(t, err)

	stdout, _, err := execute(t, "--format", "json", "ingest", "--db", dbPath, second)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   IngestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Appended)
	assert.Equal(t, 1, resp.Data.DepositEvents)
	assert.Equal(t, 1, resp.Data.AuctionEvents)
	assert.Equal(t, int64(2), resp.Data.LastDeposit)
	assert.Equal(t, int64(3), resp.Data.LastAuction)
}

func TestIngestInvalidLogWritesNothing(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "liquidator.db")
	logPath := filepath.Join(dir, "events.jsonl")
	content := `{"event":"Created","address":"0x0000000000000000000000000000000000000001"}` + "\n" +
		`{"event":"Funded","address":"0x0000000000000000000000000000000000000001","txid":"0x12"}` + "\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0644))

	_, _, err := execute(t, "ingest", "--db", dbPath, logPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load event log")
	assert.Contains(t, err.Error(), "event 2")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "database is not created for an invalid log")
}

func TestIngestRequiresDatabase(t *testing.T) {
	logPath := writeEventLog(t, t.TempDir(), "events.yaml", ir.Created{Address: testutil.Addr(1)})

	_, _, err := execute(t, "ingest", logPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}
