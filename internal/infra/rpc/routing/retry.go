package routing

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/velia-labs/settler/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior for a single provider.
type RetryConfig struct {
	MaxAttempts     uint64
	InitialDelay    time.Duration
	MaxDelay        time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  5,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
}

// ErrorAction determines how to handle a call error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// JSON-RPC request-level errors cannot succeed on retry.
	// -32700 parse, -32600 invalid request, -32601 method not found, -32602 invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}

	// Provider-specific exhaustion: switch endpoints.
	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "rate limit") {
		return ActionFailover
	}

	// Network errors, 5xx, timeouts.
	return ActionRetry
}

// CallWithRetry executes an RPC call with exponential backoff. Fatal
// errors abort immediately; failover errors are surfaced to the router.
func CallWithRetry(
	ctx context.Context,
	p provider.Provider,
	method string,
	params []any,
	cfg RetryConfig,
) (json.RawMessage, error) {
	backoff := retry.WithMaxRetries(cfg.MaxAttempts-1,
		retry.WithCappedDuration(cfg.MaxDelay,
			retry.NewExponential(cfg.InitialDelay)))

	var result json.RawMessage
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := p.Call(ctx, method, params)
		if err == nil {
			result = res
			return nil
		}
		switch ClassifyError(err) {
		case ActionRetry:
			return retry.RetryableError(err)
		default:
			return err
		}
	})
	return result, err
}
