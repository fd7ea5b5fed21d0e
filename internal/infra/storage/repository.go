package storage

import (
	"context"
	"errors"

	"github.com/velia-labs/settler/internal/core/domain"
)

// ErrCursorNotFound is returned when a cursor doesn't exist.
var ErrCursorNotFound = errors.New("cursor not found")

// CursorRepository stores the fully-reconciled block position per chain.
type CursorRepository interface {
	// Get retrieves the cursor for a chain. Returns ErrCursorNotFound
	// when the chain has never been reconciled.
	Get(ctx context.Context, chainID string) (*domain.Cursor, error)

	// Init creates the cursor at a starting block if absent.
	Init(ctx context.Context, chainID string, block uint64) error

	// Advance moves the cursor forward with compare-and-set semantics:
	// the update applies only if the stored block is lower. A regression
	// returns domain.ErrCursorRegression.
	Advance(ctx context.Context, chainID string, block uint64) error

	// Reset forces the cursor to a block, regressions included. Operator
	// tooling only.
	Reset(ctx context.Context, chainID string, block uint64) error
}

// CustodyRepository stores custody records, one per invoice.
type CustodyRepository interface {
	// Get retrieves the custody record for an invoice, nil when absent.
	Get(ctx context.Context, invoiceID uint64) (*domain.CustodyRecord, error)

	// CreateHeld inserts a held record. Inserting over an existing record
	// is a no-op returning created=false, which makes funded-event
	// replays inert.
	CreateHeld(ctx context.Context, rec *domain.CustodyRecord) (created bool, err error)

	// Transition moves a held record to a terminal status. It applies
	// only while the stored status is held; a lost race returns
	// domain.ErrCustodyConflict.
	Transition(ctx context.Context, invoiceID uint64, to domain.CustodyStatus) error

	// CountByStatus returns record counts keyed by custody status.
	CountByStatus(ctx context.Context) (map[domain.CustodyStatus]int, error)
}

// IdempotencyRepository stores fund-movement operation outcomes.
// A success entry is immutable.
type IdempotencyRepository interface {
	// Get retrieves an entry, nil when absent.
	Get(ctx context.Context, key string) (*domain.IdempotencyEntry, error)

	// PutPending creates or refreshes a pending entry and increments its
	// attempt counter. It never touches a success entry.
	PutPending(ctx context.Context, key, payloadHash string) (*domain.IdempotencyEntry, error)

	// AttachProviderRef records the provider reference on a pending entry
	// so a later webhook or poll can resolve it.
	AttachProviderRef(ctx context.Context, key, providerRef string) error

	// Resolve moves a pending entry to a terminal status. Resolving an
	// already-success entry is a no-op (first writer wins).
	Resolve(ctx context.Context, key string, status domain.OpStatus, providerRef string) error

	// ResolveByProviderRef applies a webhook- or poll-delivered status to
	// whichever pending entry carries the provider reference. Returns the
	// number of entries updated (0 when already resolved).
	ResolveByProviderRef(ctx context.Context, providerRef string, status domain.OpStatus) (int, error)
}
