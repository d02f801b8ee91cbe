package notification

import (
	"context"

	"alarm-tracker-backend/internal/mq"
)

// Publisher is satisfied by *mq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// QueueChannel publishes messages to the status-change topic for
// downstream consumers.
type QueueChannel struct {
	pub Publisher
}

// NewQueueChannel wraps a publisher.
func NewQueueChannel(pub Publisher) *QueueChannel {
	return &QueueChannel{pub: pub}
}

func (q *QueueChannel) Name() string { return "queue" }

func (q *QueueChannel) Send(ctx context.Context, msg Message) error {
	return q.pub.Publish(ctx, mq.RoutingStatusChange, msg)
}
