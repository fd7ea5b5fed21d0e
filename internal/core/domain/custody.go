package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustodyStatus tracks the off-chain custody lifecycle of an invoice's funds.
type CustodyStatus string

const (
	CustodyStatusHeld     CustodyStatus = "held"
	CustodyStatusReleased CustodyStatus = "released"
	CustodyStatusRefunded CustodyStatus = "refunded"
)

// Terminal reports whether the status admits no further transition.
func (s CustodyStatus) Terminal() bool {
	return s == CustodyStatusReleased || s == CustodyStatusRefunded
}

// CustodyRecord is this system's record of funds held for an invoice.
// At most one record exists per invoice; a held record transitions to
// exactly one of released/refunded, never both.
type CustodyRecord struct {
	InvoiceID uint64
	Amount    decimal.Decimal
	Asset     string
	Status    CustodyStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
