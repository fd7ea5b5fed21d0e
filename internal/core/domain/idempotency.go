package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// OpType is the kind of fund movement an idempotency entry guards.
type OpType string

const (
	OpReleaseNet OpType = "release_net"
	OpReleaseFee OpType = "release_fee"
	OpRefund     OpType = "refund"
)

// OpStatus is the resolution state of an idempotent operation.
type OpStatus string

const (
	OpStatusPending OpStatus = "pending"
	OpStatusSuccess OpStatus = "success"
	OpStatusFailed  OpStatus = "failed"
)

// IdempotencyEntry records the outcome of a single logical fund movement.
// Once an entry reaches success it is never overwritten.
type IdempotencyEntry struct {
	Key         string
	PayloadHash string
	Status      OpStatus
	ProviderRef string
	Attempts    int
	UpdatedAt   time.Time
}

// OpKey derives the deterministic idempotency key for a fund movement
// triggered by a specific log entry. Replays of the same entry produce
// the same key and are therefore inert.
func OpKey(invoiceID uint64, op OpType, block uint64, logIndex uint32) string {
	return fmt.Sprintf("inv:%d:%s:%d:%d", invoiceID, op, block, logIndex)
}

// PayloadHash hashes the fund-movement request payload so a key reuse
// with a different payload can be detected.
func PayloadHash(to string, amount string, asset string) string {
	sum := sha256.Sum256([]byte(to + "|" + amount + "|" + asset))
	return hex.EncodeToString(sum[:])
}
