package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed tracks reconciled events per chain and kind.
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settler_events_processed_total",
			Help: "Total number of chain events processed",
		},
		[]string{"chain", "kind", "outcome"},
	)

	// TransfersSubmitted tracks custody transfers per operation type.
	TransfersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settler_transfers_submitted_total",
			Help: "Total number of custody transfers submitted",
		},
		[]string{"chain", "op", "status"},
	)

	// Escalations tracks operations escalated for manual intervention.
	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settler_escalations_total",
			Help: "Total number of operations escalated for manual intervention",
		},
		[]string{"chain", "reason"},
	)

	// CursorBlock tracks the fully-reconciled block per chain.
	CursorBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "settler_cursor_block",
			Help: "Highest fully reconciled block number",
		},
		[]string{"chain"},
	)

	// ChainLatestBlock tracks the chain head per chain.
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "settler_chain_latest_block",
			Help: "Latest block height of the chain",
		},
		[]string{"chain"},
	)

	// RangeDuration tracks how long one reconciliation range takes.
	RangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settler_range_duration_seconds",
			Help:    "Duration of one block-range reconciliation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)

	// WalletBalance tracks the operating wallet balance per asset.
	WalletBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "settler_wallet_balance",
			Help: "Operating wallet balance in smallest units",
		},
		[]string{"chain", "asset"},
	)

	// LiquidityWarnings tracks low-balance warnings.
	LiquidityWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settler_liquidity_warnings_total",
			Help: "Total number of low native balance warnings",
		},
		[]string{"chain"},
	)

	// WebhookEvents tracks received custody webhooks.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settler_webhook_events_total",
			Help: "Total number of custody webhook deliveries",
		},
		[]string{"result"},
	)
)
