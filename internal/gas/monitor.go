// Package gas watches the operating wallet's native balance so fund
// movements fail fast instead of partially failing mid-flight.
package gas

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velia-labs/settler/internal/core/domain"
	"github.com/velia-labs/settler/internal/custody"
	"github.com/velia-labs/settler/internal/infra/redis"
	"github.com/velia-labs/settler/internal/reconcile/metrics"
)

// Alerter receives low-balance escalations. *redis.Client satisfies it.
type Alerter interface {
	PushAlert(ctx context.Context, a redis.Alert) error
}

// Config holds monitor settings.
type Config struct {
	// Threshold is the native balance below which warnings are raised.
	Threshold decimal.Decimal
	// Interval between periodic balance checks.
	Interval time.Duration
	ChainID  string
}

// Monitor checks operating-wallet liquidity before fund movements and
// runs a periodic low-balance watch.
type Monitor struct {
	cfg     Config
	gateway custody.Gateway
	alerter Alerter
	log     *slog.Logger
}

// NewMonitor creates a liquidity monitor.
func NewMonitor(cfg Config, gateway custody.Gateway, alerter Alerter, log *slog.Logger) *Monitor {
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	return &Monitor{cfg: cfg, gateway: gateway, alerter: alerter, log: log}
}

// CheckSufficientBalance reports whether the wallet can cover required
// in the given asset. A provider error is returned as-is so the caller
// retries rather than treating it as insufficient funds.
func (m *Monitor) CheckSufficientBalance(ctx context.Context, asset string, required decimal.Decimal) (bool, error) {
	balance, err := m.gateway.GetBalance(ctx, asset)
	if err != nil {
		return false, fmt.Errorf("balance check: %w", err)
	}
	metrics.WalletBalance.WithLabelValues(m.cfg.ChainID, asset).Set(balanceGauge(balance))
	return balance.GreaterThanOrEqual(required), nil
}

// Run executes the periodic low-balance watch until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	balance, err := m.gateway.GetBalance(ctx, domain.AssetNative)
	if err != nil {
		m.log.Warn("liquidity check failed", "error", err)
		return
	}
	metrics.WalletBalance.WithLabelValues(m.cfg.ChainID, domain.AssetNative).Set(balanceGauge(balance))

	if balance.LessThan(m.cfg.Threshold) {
		m.log.Warn("native balance below threshold",
			"balance", balance.String(), "threshold", m.cfg.Threshold.String())
		metrics.LiquidityWarnings.WithLabelValues(m.cfg.ChainID).Inc()
		if m.alerter != nil {
			if err := m.alerter.PushAlert(ctx, redis.Alert{
				ChainID: m.cfg.ChainID,
				Reason:  "low_native_balance",
				Detail:  fmt.Sprintf("balance %s below threshold %s", balance, m.cfg.Threshold),
			}); err != nil {
				m.log.Warn("failed to push liquidity alert", "error", err)
			}
		}
	}
}

func balanceGauge(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
