// Package custody wraps the off-chain fund-movement provider with uniform
// error semantics. All writes are idempotent keyed by the caller-supplied
// idempotency key.
package custody

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// Gateway is the fund-movement surface consumed by the engine.
type Gateway interface {
	// GetBalance returns the operating wallet's balance for an asset.
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// Transfer submits an idempotent fund movement.
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)

	// EstimateFee quotes the provider fee for an anticipated movement.
	EstimateFee(ctx context.Context, req FeeRequest) (*FeeEstimate, error)

	// PollStatus polls a submitted transfer until it reaches a terminal
	// status, bounded by maxAttempts with interval between polls. Returns
	// ErrStatusPollTimeout when the budget is exhausted.
	PollStatus(ctx context.Context, providerRef string, maxAttempts int, interval time.Duration) (TransferStatus, error)

	// PlatformAccount is the account that collects platform fees.
	PlatformAccount() string
}

// HTTPGateway implements Gateway over the provider's REST API, with a
// circuit breaker so a failing provider sheds load quickly.
type HTTPGateway struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// NewHTTPGateway creates a gateway over the provider API.
func NewHTTPGateway(cfg Config, log *slog.Logger) *HTTPGateway {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "custody",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("custody circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return &HTTPGateway{
		client:  NewClient(cfg, log),
		breaker: breaker,
		log:     log,
	}
}

// PlatformAccount is the account that collects platform fees.
func (g *HTTPGateway) PlatformAccount() string {
	return g.client.cfg.PlatformAccount
}

// GetBalance returns the operating wallet's balance for an asset.
func (g *HTTPGateway) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.client.getBalance(ctx, asset)
	})
	if err != nil {
		return decimal.Zero, err
	}
	resp := res.(*balanceResponse)
	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad balance %q: %w", resp.Balance, err)
	}
	return balance, nil
}

// Transfer submits an idempotent fund movement.
func (g *HTTPGateway) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("transfer requires an idempotency key")
	}
	res, err := g.breaker.Execute(func() (any, error) {
		return g.client.transfer(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*TransferResult), nil
}

// EstimateFee quotes the provider fee for an anticipated movement.
func (g *HTTPGateway) EstimateFee(ctx context.Context, req FeeRequest) (*FeeEstimate, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.client.estimateFee(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*FeeEstimate), nil
}

// PollStatus polls a submitted transfer with a bounded attempt budget.
func (g *HTTPGateway) PollStatus(ctx context.Context, providerRef string, maxAttempts int, interval time.Duration) (TransferStatus, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return TransferPending, ctx.Err()
			case <-time.After(interval):
			}
		}

		resp, err := g.client.transferStatus(ctx, providerRef)
		if err != nil {
			g.log.Debug("transfer status poll failed", "ref", providerRef, "attempt", attempt+1, "error", err)
			continue
		}
		if resp.Status == TransferSuccess || resp.Status == TransferFailed {
			return resp.Status, nil
		}
	}
	return TransferPending, fmt.Errorf("%w: ref %s after %d attempts", ErrStatusPollTimeout, providerRef, maxAttempts)
}
