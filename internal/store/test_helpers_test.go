package store

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	depositAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	auctionAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func amount(n int64) *big.Int {
	return big.NewInt(n)
}
