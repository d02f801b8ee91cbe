package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay shares events between instances over one pub/sub channel.
// Each relay tags what it publishes with its origin and ignores its own
// messages on the way back.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

// NewRedisRelay creates a relay with a random origin id.
func NewRedisRelay(client *redis.Client, channel string, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin returns the id stamped on events published by this relay.
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Publish sends ev to the other instances.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	ev.Origin = r.origin
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Start subscribes to the channel and delivers foreign events to hub until
// ctx is cancelled. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context, hub *Hub) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	go func() {
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("dropping malformed relayed event", zap.Error(err))
					continue
				}
				if ev.Origin == r.origin {
					continue
				}
				hub.Deliver(ev)
			}
		}
	}()
	return nil
}
