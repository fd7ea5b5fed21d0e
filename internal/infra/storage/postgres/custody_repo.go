package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velia-labs/settler/internal/core/domain"
)

// CustodyRepo implements storage.CustodyRepository using PostgreSQL.
type CustodyRepo struct {
	db *DB
}

// NewCustodyRepo creates a new PostgreSQL custody repository.
func NewCustodyRepo(db *DB) *CustodyRepo {
	return &CustodyRepo{db: db}
}

type custodyRow struct {
	InvoiceID int64     `db:"invoice_id"`
	Amount    string    `db:"amount"`
	Asset     string    `db:"asset"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (c *custodyRow) toDomain() (*domain.CustodyRecord, error) {
	amount, err := decimal.NewFromString(c.Amount)
	if err != nil {
		return nil, fmt.Errorf("custody record %d: bad amount %q: %w", c.InvoiceID, c.Amount, err)
	}
	return &domain.CustodyRecord{
		InvoiceID: uint64(c.InvoiceID),
		Amount:    amount,
		Asset:     c.Asset,
		Status:    domain.CustodyStatus(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

// Get retrieves the custody record for an invoice.
func (r *CustodyRepo) Get(ctx context.Context, invoiceID uint64) (*domain.CustodyRecord, error) {
	var row custodyRow
	err := r.db.GetContext(ctx, &row, `
		SELECT invoice_id, amount, asset, status, created_at, updated_at
		FROM custody_records WHERE invoice_id = $1`, int64(invoiceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get custody record: %w", err)
	}
	return row.toDomain()
}

// CreateHeld inserts a held record. ON CONFLICT DO NOTHING makes replays
// of the funded event inert.
func (r *CustodyRepo) CreateHeld(ctx context.Context, rec *domain.CustodyRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO custody_records (invoice_id, amount, asset, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (invoice_id) DO NOTHING`,
		int64(rec.InvoiceID), rec.Amount.String(), rec.Asset, string(domain.CustodyStatusHeld))
	if err != nil {
		return false, fmt.Errorf("failed to create custody record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// Transition moves a held record to a terminal status. The status guard
// in the WHERE clause is what makes released/refunded mutually exclusive.
func (r *CustodyRepo) Transition(ctx context.Context, invoiceID uint64, to domain.CustodyStatus) error {
	if !to.Terminal() {
		return fmt.Errorf("transition target %q is not terminal", to)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE custody_records SET status = $2, updated_at = NOW()
		WHERE invoice_id = $1 AND status = $3`,
		int64(invoiceID), string(to), string(domain.CustodyStatusHeld))
	if err != nil {
		return fmt.Errorf("failed to transition custody record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrCustodyConflict
	}
	return nil
}

// CountByStatus returns record counts keyed by custody status.
func (r *CustodyRepo) CountByStatus(ctx context.Context) (map[domain.CustodyStatus]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM custody_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count custody records: %w", err)
	}
	out := make(map[domain.CustodyStatus]int, len(rows))
	for _, row := range rows {
		out[domain.CustodyStatus(row.Status)] = row.Count
	}
	return out, nil
}
