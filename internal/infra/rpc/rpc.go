// Package rpc provides a JSON-RPC client with per-provider retry and
// cross-provider failover.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/velia-labs/settler/internal/infra/rpc/provider"
	"github.com/velia-labs/settler/internal/infra/rpc/routing"
)

// Caller is the minimal call surface consumed by higher layers.
type Caller interface {
	CallInto(ctx context.Context, result any, method string, params ...any) error
}

// Client binds a chain to a provider router.
type Client struct {
	chainID string
	router  *routing.Router
	timeout time.Duration
}

// Endpoint describes one configured provider endpoint.
type Endpoint struct {
	Name string
	URL  string
}

// NewClient creates a client over the given endpoints.
func NewClient(chainID string, endpoints []Endpoint, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	providers := make([]provider.Provider, 0, len(endpoints))
	for _, ep := range endpoints {
		providers = append(providers, provider.NewHTTPProvider(ep.Name, ep.URL, timeout))
	}
	return &Client{
		chainID: chainID,
		router:  routing.NewRouter(providers, routing.DefaultRetryConfig),
		timeout: timeout,
	}
}

// ChainID returns the chain this client serves.
func (c *Client) ChainID() string { return c.chainID }

// CallInto performs a call and decodes the result into result.
func (c *Client) CallInto(ctx context.Context, result any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	raw, err := c.router.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Router exposes the underlying router for health reporting.
func (c *Client) Router() *routing.Router { return c.router }
