package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"alarm-tracker-backend/internal/metrics"
)

// WorkerPool delivers messages through every configured channel.
type WorkerPool struct {
	size     int
	jobs     chan Message
	channels []Channel
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool with a queue of queueSize.
func NewWorkerPool(size, queueSize int, logger *zap.Logger, channels ...Channel) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Message, queueSize),
		channels: channels,
		logger:   logger,
	}
}

// Channels returns the configured channel names.
func (wp *WorkerPool) Channels() []string {
	names := make([]string, len(wp.channels))
	for i, ch := range wp.channels {
		names[i] = ch.Name()
	}
	return names
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned after ctx was cancelled.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.logger.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case msg := <-wp.jobs:
			if err := wp.Deliver(ctx, msg); err != nil {
				wp.logger.Warn("notification delivery failed",
					zap.Int("worker", id),
					zap.String("alarm_id", msg.AlarmID),
					zap.Error(err),
				)
			}
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues msg without blocking. It reports false when the queue is
// full and the message was dropped.
func (wp *WorkerPool) Dispatch(msg Message) bool {
	select {
	case wp.jobs <- msg:
		return true
	default:
		wp.logger.Warn("notification queue full, dropping message",
			zap.String("alarm_id", msg.AlarmID),
			zap.String("status", msg.Status.String()),
		)
		for _, ch := range wp.channels {
			metrics.IncNotification(ch.Name(), metrics.ResultDropped)
		}
		return false
	}
}

// Deliver sends msg through every channel synchronously. A failing channel
// does not stop the others.
func (wp *WorkerPool) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, ch := range wp.channels {
		err := ch.Send(ctx, msg)
		if err != nil {
			metrics.IncNotification(ch.Name(), metrics.ResultError)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		metrics.IncNotification(ch.Name(), metrics.ResultSuccess)
	}
	return errors.Join(errs...)
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Message {
	return wp.jobs
}
