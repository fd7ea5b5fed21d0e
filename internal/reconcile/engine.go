// Package reconcile drives off-chain custody into agreement with
// authoritative on-chain invoice state. One engine instance per chain
// processes block ranges strictly sequentially; the cursor only advances
// once every event in a range is resolved or deliberately skipped.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/velia-labs/settler/internal/core/domain"
	"github.com/velia-labs/settler/internal/custody"
	"github.com/velia-labs/settler/internal/gas"
	"github.com/velia-labs/settler/internal/infra/chain"
	"github.com/velia-labs/settler/internal/infra/redis"
	"github.com/velia-labs/settler/internal/infra/storage"
	"github.com/velia-labs/settler/internal/reconcile/metrics"
)

// LiquidityChecker gates fund movements on wallet balance.
// *gas.Monitor satisfies it.
type LiquidityChecker interface {
	CheckSufficientBalance(ctx context.Context, asset string, required decimal.Decimal) (bool, error)
}

// Leader coordinates at-most-one-active-engine per chain.
// *redis.Client satisfies it.
type Leader interface {
	AcquireLeader(ctx context.Context, chainID, instanceID string, ttl time.Duration) (bool, error)
	RefreshLeader(ctx context.Context, chainID, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLeader(ctx context.Context, chainID, instanceID string) error
}

// Config holds engine settings for one chain.
type Config struct {
	ChainID string

	// PollInterval between reconciliation cycles.
	PollInterval time.Duration

	// BatchSize caps the number of blocks per range.
	BatchSize uint64

	// Confirmations is how far behind the head the engine stays.
	Confirmations uint64

	// StartBlock seeds the cursor on first run.
	StartBlock uint64

	// MaxAttempts is the per-operation retry budget before escalation.
	MaxAttempts int

	// StatusPollAttempts and StatusPollInterval bound transfer status polling.
	StatusPollAttempts int
	StatusPollInterval time.Duration

	// MaxParallelInvoices caps cross-invoice concurrency within a range.
	MaxParallelInvoices int

	// LeaderTTL is the leader lock lifetime; refreshed each cycle.
	LeaderTTL time.Duration
}

func (c *Config) defaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 10
	}
	if c.StatusPollAttempts == 0 {
		c.StatusPollAttempts = 10
	}
	if c.StatusPollInterval == 0 {
		c.StatusPollInterval = 2 * time.Second
	}
	if c.MaxParallelInvoices == 0 {
		c.MaxParallelInvoices = 8
	}
	if c.LeaderTTL == 0 {
		c.LeaderTTL = 60 * time.Second
	}
}

// ErrRangeIncomplete is returned when a range still holds unresolved
// operations; the cursor stays put and the range is retried next cycle.
var ErrRangeIncomplete = errors.New("block range has unresolved operations")

// Engine is the event reconciliation engine.
type Engine struct {
	cfg       Config
	reader    chain.Reader
	gateway   custody.Gateway
	liquidity LiquidityChecker
	cursors   storage.CursorRepository
	custody   storage.CustodyRepository
	idem      storage.IdempotencyRepository
	alerter   gas.Alerter
	leader    Leader
	log       *slog.Logger

	instanceID string
	isLeader   bool
	running    atomic.Bool
	stop       chan struct{}
	done       chan struct{}
}

// New creates an engine. alerter and leader may be nil (no escalation
// queue, single-instance deployment).
func New(
	cfg Config,
	reader chain.Reader,
	gateway custody.Gateway,
	liquidity LiquidityChecker,
	cursors storage.CursorRepository,
	custodyRepo storage.CustodyRepository,
	idem storage.IdempotencyRepository,
	alerter gas.Alerter,
	leader Leader,
	log *slog.Logger,
) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:        cfg,
		reader:     reader,
		gateway:    gateway,
		liquidity:  liquidity,
		cursors:    cursors,
		custody:    custodyRepo,
		idem:       idem,
		alerter:    alerter,
		leader:     leader,
		log:        log.With("chain", cfg.ChainID),
		instanceID: uuid.New().String(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the reconciliation loop. One range completes fully before
// the next begins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already running")
	}
	defer e.running.Store(false)
	defer close(e.done)

	if err := e.cursors.Init(ctx, e.cfg.ChainID, e.cfg.StartBlock); err != nil {
		return fmt.Errorf("init cursor: %w", err)
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.releaseLeadership()
			return nil
		case <-e.stop:
			e.releaseLeadership()
			return nil
		case <-ticker.C:
			if !e.ensureLeadership(ctx) {
				continue
			}
			if err := e.Cycle(ctx); err != nil && !errors.Is(err, ErrRangeIncomplete) {
				e.log.Error("reconciliation cycle failed", "error", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight range to
// finish or be abandoned for retry.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.running.Load() {
		return nil
	}
	close(e.stop)
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cycle reconciles the next pending block range, if any. Exported so
// tests and push-based block notifications can trigger a pass directly.
func (e *Engine) Cycle(ctx context.Context) error {
	cursor, err := e.cursors.Get(ctx, e.cfg.ChainID)
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}

	latest, err := e.reader.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}
	metrics.ChainLatestBlock.WithLabelValues(e.cfg.ChainID).Set(float64(latest))

	if latest < e.cfg.Confirmations {
		return nil
	}
	safe := latest - e.cfg.Confirmations
	if safe <= cursor.Block {
		return nil
	}

	from := cursor.Block + 1
	to := min(safe, from+e.cfg.BatchSize-1)

	start := time.Now()
	err = e.processRange(ctx, from, to)
	metrics.RangeDuration.WithLabelValues(e.cfg.ChainID).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if err := e.cursors.Advance(ctx, e.cfg.ChainID, to); err != nil {
		return fmt.Errorf("advance cursor to %d: %w", to, err)
	}
	metrics.CursorBlock.WithLabelValues(e.cfg.ChainID).Set(float64(to))
	e.log.Info("range reconciled", "from", from, "to", to)
	return nil
}

// processRange fetches all events in [from, to] and applies them,
// serialized per invoice and parallel across invoices.
func (e *Engine) processRange(ctx context.Context, from, to uint64) error {
	byInvoice := make(map[uint64][]domain.RawEvent)
	for _, kind := range domain.EventKindPriority {
		events, err := e.reader.GetEventsInRange(ctx, kind, from, to)
		if err != nil {
			return fmt.Errorf("fetch %s events: %w", kind, err)
		}
		for _, ev := range events {
			byInvoice[ev.InvoiceID] = append(byInvoice[ev.InvoiceID], ev)
		}
	}
	if len(byInvoice) == 0 {
		return nil
	}

	// Chain order within an invoice; a released/refunded race between two
	// events of the same invoice is impossible because each invoice's
	// events run on a single goroutine.
	for _, events := range byInvoice {
		sort.Slice(events, func(i, j int) bool { return events[i].Before(events[j]) })
	}

	var unresolved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallelInvoices)

	for invoiceID, events := range byInvoice {
		invoiceID, events := invoiceID, events
		g.Go(func() error {
			for _, ev := range events {
				outcome := e.applyEvent(gctx, ev)
				metrics.EventsProcessed.WithLabelValues(e.cfg.ChainID, string(ev.Kind), outcome.String()).Inc()
				if outcome == OutcomeUnresolved {
					unresolved.Add(1)
					// Later events of this invoice would race the
					// unfinished operation; retry the whole tail next cycle.
					e.log.Warn("invoice left unresolved in range",
						"invoice", invoiceID, "kind", ev.Kind, "block", ev.Block)
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if n := unresolved.Load(); n > 0 {
		return fmt.Errorf("%w: %d of %d invoices in [%d,%d]", ErrRangeIncomplete, n, len(byInvoice), from, to)
	}
	return nil
}

func (e *Engine) ensureLeadership(ctx context.Context) bool {
	if e.leader == nil {
		return true
	}
	if e.isLeader {
		ok, err := e.leader.RefreshLeader(ctx, e.cfg.ChainID, e.instanceID, e.cfg.LeaderTTL)
		if err != nil {
			e.log.Warn("leader refresh failed", "error", err)
			return false
		}
		if !ok {
			e.log.Warn("lost reconciliation leadership")
			e.isLeader = false
		}
		return ok
	}
	ok, err := e.leader.AcquireLeader(ctx, e.cfg.ChainID, e.instanceID, e.cfg.LeaderTTL)
	if err != nil {
		e.log.Warn("leader acquire failed", "error", err)
		return false
	}
	if ok {
		e.log.Info("acquired reconciliation leadership")
		e.isLeader = true
	}
	return ok
}

func (e *Engine) releaseLeadership() {
	if e.leader == nil || !e.isLeader {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.leader.ReleaseLeader(ctx, e.cfg.ChainID, e.instanceID); err != nil {
		e.log.Warn("leader release failed", "error", err)
	}
	e.isLeader = false
}

func (e *Engine) escalate(ctx context.Context, ev domain.RawEvent, opKey, reason, detail string) {
	metrics.Escalations.WithLabelValues(e.cfg.ChainID, reason).Inc()
	e.log.Error("operation escalated", "invoice", ev.InvoiceID, "op_key", opKey, "reason", reason, "detail", detail)
	if e.alerter == nil {
		return
	}
	if err := e.alerter.PushAlert(ctx, redis.Alert{
		ChainID:   e.cfg.ChainID,
		InvoiceID: ev.InvoiceID,
		OpKey:     opKey,
		Reason:    reason,
		Detail:    detail,
	}); err != nil {
		e.log.Warn("failed to push alert", "error", err)
	}
}
