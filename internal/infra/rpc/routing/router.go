package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/velia-labs/settler/internal/infra/rpc/provider"
)

// Router distributes calls across a chain's providers, rotating to the
// next provider when one fails over (rate limited, quota exhausted).
type Router struct {
	mu        sync.Mutex
	providers []provider.Provider
	active    int
	retryCfg  RetryConfig
}

// NewRouter creates a router over the given providers.
func NewRouter(providers []provider.Provider, cfg RetryConfig) *Router {
	return &Router{providers: providers, retryCfg: cfg}
}

// Call routes a JSON-RPC call to the active provider, failing over to the
// remaining providers in order when the active one is exhausted.
func (r *Router) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	r.mu.Lock()
	n := len(r.providers)
	start := r.active
	r.mu.Unlock()

	if n == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		r.mu.Lock()
		p := r.providers[idx]
		r.mu.Unlock()

		result, err := CallWithRetry(ctx, p, method, params, r.retryCfg)
		if err == nil {
			r.mu.Lock()
			r.active = idx
			r.mu.Unlock()
			return result, nil
		}

		lastErr = err
		if ClassifyError(err) == ActionFatal {
			return nil, err
		}
		// Retry budget exhausted or failover: try the next provider.
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// Providers returns the configured providers (for health reporting).
func (r *Router) Providers() []provider.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]provider.Provider, len(r.providers))
	copy(out, r.providers)
	return out
}
