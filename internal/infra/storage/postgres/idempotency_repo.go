package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/velia-labs/settler/internal/core/domain"
)

// IdempotencyRepo implements storage.IdempotencyRepository using PostgreSQL.
type IdempotencyRepo struct {
	db *DB
}

// NewIdempotencyRepo creates a new PostgreSQL idempotency repository.
func NewIdempotencyRepo(db *DB) *IdempotencyRepo {
	return &IdempotencyRepo{db: db}
}

type idemRow struct {
	Key         string    `db:"op_key"`
	PayloadHash string    `db:"payload_hash"`
	Status      string    `db:"status"`
	ProviderRef string    `db:"provider_ref"`
	Attempts    int       `db:"attempts"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (i *idemRow) toDomain() *domain.IdempotencyEntry {
	return &domain.IdempotencyEntry{
		Key:         i.Key,
		PayloadHash: i.PayloadHash,
		Status:      domain.OpStatus(i.Status),
		ProviderRef: i.ProviderRef,
		Attempts:    i.Attempts,
		UpdatedAt:   i.UpdatedAt,
	}
}

// Get retrieves an entry by key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyEntry, error) {
	var row idemRow
	err := r.db.GetContext(ctx, &row, `
		SELECT op_key, payload_hash, status, provider_ref, attempts, updated_at
		FROM idempotency_entries WHERE op_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency entry: %w", err)
	}
	return row.toDomain(), nil
}

// PutPending creates or refreshes a pending entry. The status guard keeps
// success entries immutable; a failed entry goes back to pending for the
// next retry cycle with the attempt counter carried forward.
func (r *IdempotencyRepo) PutPending(ctx context.Context, key, payloadHash string) (*domain.IdempotencyEntry, error) {
	var row idemRow
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO idempotency_entries (op_key, payload_hash, status, provider_ref, attempts, updated_at)
		VALUES ($1, $2, 'pending', '', 1, NOW())
		ON CONFLICT (op_key) DO UPDATE
		SET status = 'pending', attempts = idempotency_entries.attempts + 1, updated_at = NOW()
		WHERE idempotency_entries.status <> 'success'
		RETURNING op_key, payload_hash, status, provider_ref, attempts, updated_at`,
		key, payloadHash)
	if errors.Is(err, sql.ErrNoRows) {
		// The conflict target was a success row; return it untouched.
		return r.Get(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to put pending entry: %w", err)
	}
	return row.toDomain(), nil
}

// AttachProviderRef records the provider reference on a pending entry.
func (r *IdempotencyRepo) AttachProviderRef(ctx context.Context, key, providerRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_entries
		SET provider_ref = $2, updated_at = NOW()
		WHERE op_key = $1 AND status = 'pending'`,
		key, providerRef)
	if err != nil {
		return fmt.Errorf("failed to attach provider ref: %w", err)
	}
	return nil
}

// Resolve moves a pending entry to a terminal status. Success rows never
// change, so the first resolution wins and duplicates are no-ops.
func (r *IdempotencyRepo) Resolve(ctx context.Context, key string, status domain.OpStatus, providerRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_entries
		SET status = $2, provider_ref = $3, updated_at = NOW()
		WHERE op_key = $1 AND status <> 'success'`,
		key, string(status), providerRef)
	if err != nil {
		return fmt.Errorf("failed to resolve idempotency entry: %w", err)
	}
	return nil
}

// ResolveByProviderRef applies a provider-delivered status to the pending
// entry carrying the reference.
func (r *IdempotencyRepo) ResolveByProviderRef(ctx context.Context, providerRef string, status domain.OpStatus) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_entries
		SET status = $2, updated_at = NOW()
		WHERE provider_ref = $1 AND status = 'pending'`,
		providerRef, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to resolve by provider ref: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}
