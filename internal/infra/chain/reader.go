// Package chain reads on-chain invoice records and event logs through the
// chain collaborator's JSON-RPC interface. All access is read-only.
package chain

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velia-labs/settler/internal/core/domain"
	"github.com/velia-labs/settler/internal/infra/rpc"
)

// Reader is the read-only chain accessor consumed by the engine.
type Reader interface {
	// GetInvoice fetches the on-chain invoice record. Returns
	// domain.ErrInvoiceNotFound for an unknown id.
	GetInvoice(ctx context.Context, id uint64) (*domain.Invoice, error)

	// GetEventsInRange fetches all events of one kind in [from, to],
	// ordered by (block, logIndex) ascending.
	GetEventsInRange(ctx context.Context, kind domain.EventKind, from, to uint64) ([]domain.RawEvent, error)

	// LatestBlock returns the current chain head.
	LatestBlock(ctx context.Context) (uint64, error)
}

// RPCReader implements Reader over a JSON-RPC client.
type RPCReader struct {
	rpc rpc.Caller
}

// NewRPCReader creates a reader over the given RPC client.
func NewRPCReader(c rpc.Caller) *RPCReader {
	return &RPCReader{rpc: c}
}

type invoiceResult struct {
	ID               uint64 `json:"id"`
	Issuer           string `json:"issuer"`
	Payer            string `json:"payer"`
	Receiver         string `json:"receiver"`
	Amount           string `json:"amount"`
	Asset            string `json:"asset"`
	RequiresDelivery bool   `json:"requiresDelivery"`
	FeeBps           int64  `json:"feeBps"`
	Status           string `json:"status"`
	CreatedAt        int64  `json:"createdAt"`
	FundedAt         int64  `json:"fundedAt"`
	DeliveredAt      int64  `json:"deliveredAt"`
	CompletedAt      int64  `json:"completedAt"`
}

// GetInvoice fetches the on-chain invoice record.
func (r *RPCReader) GetInvoice(ctx context.Context, id uint64) (*domain.Invoice, error) {
	var res *invoiceResult
	if err := r.rpc.CallInto(ctx, &res, "invoice_get", id); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("invoice_get %d: %w", id, err)
	}
	if res == nil {
		return nil, domain.ErrInvoiceNotFound
	}

	amount, err := decimal.NewFromString(res.Amount)
	if err != nil {
		return nil, fmt.Errorf("invoice %d: bad amount %q: %w", id, res.Amount, err)
	}

	inv := &domain.Invoice{
		ID:               res.ID,
		Issuer:           res.Issuer,
		Payer:            res.Payer,
		Receiver:         res.Receiver,
		Amount:           amount,
		Asset:            res.Asset,
		RequiresDelivery: res.RequiresDelivery,
		FeeBps:           res.FeeBps,
		Status:           domain.InvoiceStatus(res.Status),
	}
	inv.CreatedAt = unixPtr(res.CreatedAt)
	inv.FundedAt = unixPtr(res.FundedAt)
	inv.DeliveredAt = unixPtr(res.DeliveredAt)
	inv.CompletedAt = unixPtr(res.CompletedAt)
	return inv, nil
}

type eventResult struct {
	Kind             string `json:"kind"`
	InvoiceID        uint64 `json:"invoiceId"`
	Issuer           string `json:"issuer"`
	Payer            string `json:"payer"`
	Receiver         string `json:"receiver"`
	Amount           string `json:"amount"`
	Asset            string `json:"asset"`
	RequiresDelivery bool   `json:"requiresDelivery"`
	FeeBps           int64  `json:"feeBps"`
	Block            uint64 `json:"blockNumber"`
	LogIndex         uint32 `json:"logIndex"`
	TxHash           string `json:"txHash"`
}

// GetEventsInRange fetches all events of one kind in [from, to].
func (r *RPCReader) GetEventsInRange(ctx context.Context, kind domain.EventKind, from, to uint64) ([]domain.RawEvent, error) {
	var results []eventResult
	if err := r.rpc.CallInto(ctx, &results, "invoice_getEvents", string(kind), from, to); err != nil {
		return nil, fmt.Errorf("invoice_getEvents %s [%d,%d]: %w", kind, from, to, err)
	}

	events := make([]domain.RawEvent, 0, len(results))
	for _, res := range results {
		amount, err := decimal.NewFromString(res.Amount)
		if err != nil {
			return nil, fmt.Errorf("event %s invoice %d: bad amount %q: %w", res.Kind, res.InvoiceID, res.Amount, err)
		}
		events = append(events, domain.RawEvent{
			Kind:             domain.EventKind(res.Kind),
			InvoiceID:        res.InvoiceID,
			Issuer:           res.Issuer,
			Payer:            res.Payer,
			Receiver:         res.Receiver,
			Amount:           amount,
			Asset:            res.Asset,
			RequiresDelivery: res.RequiresDelivery,
			FeeBps:           res.FeeBps,
			Block:            res.Block,
			LogIndex:         res.LogIndex,
			TxHash:           res.TxHash,
		})
	}

	// Providers should return ascending order; enforce it anyway since
	// the engine's per-invoice ordering depends on it.
	sort.Slice(events, func(i, j int) bool { return events[i].Before(events[j]) })
	return events, nil
}

// LatestBlock returns the current chain head.
func (r *RPCReader) LatestBlock(ctx context.Context) (uint64, error) {
	var hexNum string
	if err := r.rpc.CallInto(ctx, &hexNum, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(hexNum, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse block number %q: %w", hexNum, err)
	}
	return n, nil
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
