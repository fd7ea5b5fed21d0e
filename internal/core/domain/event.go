package domain

import "github.com/shopspring/decimal"

// EventKind identifies an on-chain invoice state-transition event.
type EventKind string

const (
	EventInvoiceCreated    EventKind = "InvoiceCreated"
	EventInvoiceFunded     EventKind = "InvoiceFunded"
	EventDeliverySubmitted EventKind = "DeliverySubmitted"
	EventDeliveryConfirmed EventKind = "DeliveryConfirmed"
	EventInvoiceCompleted  EventKind = "InvoiceCompleted"
	EventInvoiceCancelled  EventKind = "InvoiceCancelled"
)

// EventKindPriority is the fixed order in which kinds are fetched and
// tie-broken when two events share a (block, logIndex) position.
var EventKindPriority = []EventKind{
	EventInvoiceCreated,
	EventInvoiceFunded,
	EventDeliverySubmitted,
	EventDeliveryConfirmed,
	EventInvoiceCompleted,
	EventInvoiceCancelled,
}

// KindRank returns the priority rank of a kind (lower applies first).
func KindRank(k EventKind) int {
	for i, p := range EventKindPriority {
		if p == k {
			return i
		}
	}
	return len(EventKindPriority)
}

// RawEvent is a decoded on-chain log entry. (Block, LogIndex) is a
// monotonically increasing position unique per log entry, which makes
// replays of the same entry detectable.
type RawEvent struct {
	Kind        EventKind
	InvoiceID   uint64
	Issuer      string
	Payer       string
	Receiver    string
	Amount      decimal.Decimal
	Asset       string
	RequiresDelivery bool
	FeeBps      int64
	Block       uint64
	LogIndex    uint32
	TxHash      string
}

// Before reports whether e precedes other in chain order.
func (e RawEvent) Before(other RawEvent) bool {
	if e.Block != other.Block {
		return e.Block < other.Block
	}
	if e.LogIndex != other.LogIndex {
		return e.LogIndex < other.LogIndex
	}
	return KindRank(e.Kind) < KindRank(other.Kind)
}
