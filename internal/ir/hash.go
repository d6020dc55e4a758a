package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNotice = "liquidator/notice/v1"
	DomainRecord = "liquidator/record/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NoticeID computes the content-addressed ID of a deposit notice.
//
// A deposit passes each notice-bearing transition at most once, so
// (kind, deposit) identifies the qualifying transition. The ID is stable
// across restarts and replays, which lets the action journal reject a
// notice that was already claimed.
func NoticeID(kind ActionKind, deposit common.Address) string {
	obj := map[string]any{
		"kind":    string(kind),
		"deposit": deposit,
	}

	// Only strings - cannot fail.
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		panic(fmt.Sprintf("NoticeID: %v", err))
	}

	return hashWithDomain(DomainNotice, canonical)
}

// RecordHash computes the content hash of a wire record.
// Used for diagnostics and log correlation only; identical events at
// different log positions share a hash.
func RecordHash(r Record) (string, error) {
	canonical, err := MarshalRecord(r)
	if err != nil {
		return "", fmt.Errorf("RecordHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}
