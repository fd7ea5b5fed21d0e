// Package memory provides in-memory repository implementations for tests
// and storage-less development runs. Not authoritative across restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/velia-labs/settler/internal/core/domain"
	"github.com/velia-labs/settler/internal/infra/storage"
)

// Store holds all in-memory state behind a single lock.
type Store struct {
	mu       sync.RWMutex
	cursors  map[string]*domain.Cursor
	custody  map[uint64]*domain.CustodyRecord
	idem     map[string]*domain.IdempotencyEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		cursors: make(map[string]*domain.Cursor),
		custody: make(map[uint64]*domain.CustodyRecord),
		idem:    make(map[string]*domain.IdempotencyEntry),
	}
}

// CursorRepo returns a storage.CursorRepository view of the store.
func (s *Store) CursorRepo() storage.CursorRepository { return (*cursorRepo)(s) }

// CustodyRepo returns a storage.CustodyRepository view of the store.
func (s *Store) CustodyRepo() storage.CustodyRepository { return (*custodyRepo)(s) }

// IdempotencyRepo returns a storage.IdempotencyRepository view of the store.
func (s *Store) IdempotencyRepo() storage.IdempotencyRepository { return (*idemRepo)(s) }

type cursorRepo Store

func (r *cursorRepo) Get(ctx context.Context, chainID string) (*domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cursors[chainID]
	if !ok {
		return nil, storage.ErrCursorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *cursorRepo) Init(ctx context.Context, chainID string, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cursors[chainID]; ok {
		return nil
	}
	r.cursors[chainID] = &domain.Cursor{ChainID: chainID, Block: block, UpdatedAt: time.Now()}
	return nil
}

func (r *cursorRepo) Advance(ctx context.Context, chainID string, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cursors[chainID]
	if !ok {
		return storage.ErrCursorNotFound
	}
	if c.Block >= block {
		return domain.ErrCursorRegression
	}
	c.Block = block
	c.UpdatedAt = time.Now()
	return nil
}

func (r *cursorRepo) Reset(ctx context.Context, chainID string, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[chainID] = &domain.Cursor{ChainID: chainID, Block: block, UpdatedAt: time.Now()}
	return nil
}

type custodyRepo Store

func (r *custodyRepo) Get(ctx context.Context, invoiceID uint64) (*domain.CustodyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.custody[invoiceID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *custodyRepo) CreateHeld(ctx context.Context, rec *domain.CustodyRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.custody[rec.InvoiceID]; ok {
		return false, nil
	}
	now := time.Now()
	r.custody[rec.InvoiceID] = &domain.CustodyRecord{
		InvoiceID: rec.InvoiceID,
		Amount:    rec.Amount,
		Asset:     rec.Asset,
		Status:    domain.CustodyStatusHeld,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

func (r *custodyRepo) Transition(ctx context.Context, invoiceID uint64, to domain.CustodyStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.custody[invoiceID]
	if !ok || rec.Status != domain.CustodyStatusHeld {
		return domain.ErrCustodyConflict
	}
	rec.Status = to
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *custodyRepo) CountByStatus(ctx context.Context) (map[domain.CustodyStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.CustodyStatus]int)
	for _, rec := range r.custody {
		out[rec.Status]++
	}
	return out, nil
}

type idemRepo Store

func (r *idemRepo) Get(ctx context.Context, key string) (*domain.IdempotencyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.idem[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *idemRepo) PutPending(ctx context.Context, key, payloadHash string) (*domain.IdempotencyEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.idem[key]
	if ok && e.Status == domain.OpStatusSuccess {
		cp := *e
		return &cp, nil
	}
	if !ok {
		e = &domain.IdempotencyEntry{Key: key, PayloadHash: payloadHash}
		r.idem[key] = e
	}
	e.Status = domain.OpStatusPending
	e.Attempts++
	e.UpdatedAt = time.Now()
	cp := *e
	return &cp, nil
}

func (r *idemRepo) AttachProviderRef(ctx context.Context, key, providerRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.idem[key]
	if !ok || e.Status != domain.OpStatusPending {
		return nil
	}
	e.ProviderRef = providerRef
	e.UpdatedAt = time.Now()
	return nil
}

func (r *idemRepo) Resolve(ctx context.Context, key string, status domain.OpStatus, providerRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.idem[key]
	if !ok || e.Status == domain.OpStatusSuccess {
		return nil
	}
	e.Status = status
	e.ProviderRef = providerRef
	e.UpdatedAt = time.Now()
	return nil
}

func (r *idemRepo) ResolveByProviderRef(ctx context.Context, providerRef string, status domain.OpStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.idem {
		if e.ProviderRef == providerRef && e.Status == domain.OpStatusPending {
			e.Status = status
			e.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}
