package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const alertQueueKey = "settler:alerts"

// Alert is an operational escalation pushed for manual intervention.
// Reconciliation never drops a failed fund movement silently; it lands
// here instead.
type Alert struct {
	ID        string    `json:"id"`
	ChainID   string    `json:"chain_id"`
	InvoiceID uint64    `json:"invoice_id,omitempty"`
	OpKey     string    `json:"op_key,omitempty"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PushAlert enqueues an alert, scored by creation time so operators can
// drain oldest-first.
func (c *Client) PushAlert(ctx context.Context, a Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	err = c.rdb.ZAdd(ctx, alertQueueKey, redis.Z{
		Score:  float64(a.CreatedAt.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PendingAlerts returns up to limit queued alerts, oldest first.
func (c *Client) PendingAlerts(ctx context.Context, limit int64) ([]Alert, error) {
	members, err := c.rdb.ZRange(ctx, alertQueueKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	alerts := make([]Alert, 0, len(members))
	for _, m := range members {
		var a Alert
		if err := json.Unmarshal([]byte(m), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// AckAlert removes a drained alert from the queue.
func (c *Client) AckAlert(ctx context.Context, a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return c.rdb.ZRem(ctx, alertQueueKey, string(data)).Err()
}
