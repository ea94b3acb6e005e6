// Package notify is the fire-and-forget event sink consumed by the dashboard
// notification subsystem. Emission failures are the caller's to swallow; this
// package only reports them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel the dashboard listens on.
const Channel = "storefront:notifications"

type Event struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type redisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(addr string) Notifier {
	return &redisNotifier{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (n *redisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal event: %w", err)
	}

	if err := n.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: failed to publish event: %w", err)
	}
	return nil
}

// Nop discards every event. Used in tests and redis-less deployments.
func Nop() Notifier {
	return nopNotifier{}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error {
	return nil
}
