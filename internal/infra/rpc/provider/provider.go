package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Provider is a JSON-RPC endpoint for a single chain.
type Provider interface {
	// Name returns the provider's configured name.
	Name() string

	// Call performs a single JSON-RPC call and returns the raw result.
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)

	// Health returns a snapshot of the provider's recent performance.
	Health() HealthStatus
}

// HealthStatus summarizes a provider's recent behavior.
type HealthStatus struct {
	Available     bool
	LastSuccessAt time.Time
	LastFailureAt time.Time
	SuccessCount  int
	FailureCount  int
}
