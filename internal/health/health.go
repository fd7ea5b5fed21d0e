// Package health exposes liveness and reconciliation-lag reporting over HTTP.
package health

import "context"

// Status is an aggregate health level.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Check is a named health probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Report describes the result of one probe.
type Report struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// LagReport describes reconciliation lag for a chain.
type LagReport struct {
	ChainID     string `json:"chain_id"`
	CursorBlock uint64 `json:"cursor_block"`
	LatestBlock uint64 `json:"latest_block"`
	Lag         int64  `json:"lag"`
	Status      Status `json:"status"`
}
