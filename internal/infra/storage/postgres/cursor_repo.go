package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/velia-labs/settler/internal/core/domain"
	"github.com/velia-labs/settler/internal/infra/storage"
)

// CursorRepo implements storage.CursorRepository using PostgreSQL.
type CursorRepo struct {
	db *DB
}

// NewCursorRepo creates a new PostgreSQL cursor repository.
func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

type cursorRow struct {
	ChainID   string    `db:"chain_id"`
	Block     int64     `db:"block_number"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Get retrieves the cursor for a chain.
func (r *CursorRepo) Get(ctx context.Context, chainID string) (*domain.Cursor, error) {
	var row cursorRow
	err := r.db.GetContext(ctx, &row,
		`SELECT chain_id, block_number, updated_at FROM cursors WHERE chain_id = $1`, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	return &domain.Cursor{
		ChainID:   row.ChainID,
		Block:     uint64(row.Block),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Init creates the cursor at a starting block if absent.
func (r *CursorRepo) Init(ctx context.Context, chainID string, block uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (chain_id, block_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chain_id) DO NOTHING`,
		chainID, int64(block))
	if err != nil {
		return fmt.Errorf("failed to init cursor: %w", err)
	}
	return nil
}

// Advance moves the cursor forward. The WHERE clause enforces
// monotonicity; a concurrent or stale writer simply matches zero rows.
func (r *CursorRepo) Advance(ctx context.Context, chainID string, block uint64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cursors SET block_number = $2, updated_at = NOW()
		WHERE chain_id = $1 AND block_number < $2`,
		chainID, int64(block))
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrCursorRegression
	}
	return nil
}

// Reset forces the cursor to a block. Operator tooling only.
func (r *CursorRepo) Reset(ctx context.Context, chainID string, block uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (chain_id, block_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chain_id) DO UPDATE SET block_number = EXCLUDED.block_number, updated_at = NOW()`,
		chainID, int64(block))
	if err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}
	return nil
}
