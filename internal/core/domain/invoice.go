package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetNative is the settlement asset identifier for the chain's native currency.
const AssetNative = "native"

// InvoiceStatus is the on-chain lifecycle status. It is authoritative on
// chain; this system only mirrors it and never computes a competing value.
type InvoiceStatus string

const (
	InvoiceStatusCreated           InvoiceStatus = "created"
	InvoiceStatusFunded            InvoiceStatus = "funded"
	InvoiceStatusDeliverySubmitted InvoiceStatus = "delivery_submitted"
	InvoiceStatusDelivered         InvoiceStatus = "delivered"
	InvoiceStatusCompleted         InvoiceStatus = "completed"
	InvoiceStatusCancelled         InvoiceStatus = "cancelled"
)

// Invoice mirrors the on-chain invoice record. Read-only from this
// system's perspective.
type Invoice struct {
	ID       uint64
	Issuer   string
	Payer    string
	Receiver string

	// Amount is in the asset's smallest unit and always integer-valued.
	Amount decimal.Decimal
	Asset  string

	// RequiresDelivery gates release behind a delivery-confirmation step.
	RequiresDelivery bool

	// FeeBps is the platform fee in basis points, fixed at creation.
	FeeBps int64

	Status      InvoiceStatus
	CreatedAt   *time.Time
	FundedAt    *time.Time
	DeliveredAt *time.Time
	CompletedAt *time.Time
}
