package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Addr returns the address whose numeric value is n.
func Addr(n uint64) common.Address {
	return common.BigToAddress(new(big.Int).SetUint64(n))
}

// Hash returns the hash whose numeric value is n.
func Hash(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n))
}

// Amount returns n as a *big.Int.
func Amount(n int64) *big.Int {
	return big.NewInt(n)
}
