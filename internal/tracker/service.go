// Package tracker is the orchestrator the HTTP layer and the simulator talk
// to. It owns no state itself; the Backend does.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"alarm-tracker-backend/internal/aggregate"
	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/events"
	"alarm-tracker-backend/internal/metrics"
	"alarm-tracker-backend/internal/notification"
	"alarm-tracker-backend/internal/parse"
)

// ErrNotificationsDisabled is returned by Notify when no channel is set up.
var ErrNotificationsDisabled = errors.New("notifications are not configured")

// Notifier is satisfied by *notification.WorkerPool.
type Notifier interface {
	Dispatch(msg notification.Message) bool
	Deliver(ctx context.Context, msg notification.Message) error
}

// EventPublisher is satisfied by *events.Hub.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// Service coordinates a Backend with change events and notifications.
type Service struct {
	backend  Backend
	events   EventPublisher
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes change events to p.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithNotifier dispatches status-change notifications to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service over backend.
func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns "local" or "remote".
func (s *Service) Mode() string {
	return s.backend.Mode()
}

// Backend returns the underlying backend.
func (s *Service) Backend() Backend {
	return s.backend
}

// Now returns the service clock reading in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Alarms returns the current list.
func (s *Service) Alarms(ctx context.Context) ([]alarm.Alarm, error) {
	alarms, err := s.backend.Alarms(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetActiveAlarms(alarm.CountActive(alarms))
	return alarms, nil
}

// ActiveCount returns the number of active alarms and the total.
func (s *Service) ActiveCount(ctx context.Context) (active, total int, err error) {
	alarms, err := s.Alarms(ctx)
	if err != nil {
		return 0, 0, err
	}
	return alarm.CountActive(alarms), len(alarms), nil
}

// Toggle flips one alarm, then announces the change.
func (s *Service) Toggle(ctx context.Context, id string) (alarm.Alarm, error) {
	a, err := s.backend.Toggle(ctx, id, s.Now())
	metrics.IncToggle(s.backend.Mode(), err)
	if err != nil {
		return alarm.Alarm{}, err
	}

	s.logger.Info("alarm toggled",
		zap.String("alarm_id", a.ID),
		zap.String("status", a.Status().String()),
	)
	s.publish(ctx, events.NewEvent(events.KindToggled, a.ID, a.Status().String(), a.LastStatusChangeTime))
	s.DispatchChange(notification.MessageFor(a, nil))
	return a, nil
}

// Create adds an alarm. An empty id selects the next generated id.
func (s *Service) Create(ctx context.Context, id, description string) (alarm.Alarm, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		existing, err := s.backend.Alarms(ctx)
		if err != nil {
			return alarm.Alarm{}, err
		}
		ids := make([]string, len(existing))
		for i, a := range existing {
			ids[i] = a.ID
		}
		id = parse.NextAlarmID(ids)
	}
	if !parse.ValidAlarmID(id) {
		return alarm.Alarm{}, fmt.Errorf("%w: %q", alarm.ErrInvalidID, id)
	}

	now := s.Now()
	a := alarm.New(id, strings.TrimSpace(description), now)
	if err := s.backend.Create(ctx, a); err != nil {
		return alarm.Alarm{}, err
	}
	s.publish(ctx, events.NewEvent(events.KindCreated, a.ID, a.Status().String(), now))
	return a, nil
}

// Describe changes an alarm's description.
func (s *Service) Describe(ctx context.Context, id, description string) (alarm.Alarm, error) {
	a, err := s.backend.Describe(ctx, id, strings.TrimSpace(description))
	if err != nil {
		return alarm.Alarm{}, err
	}
	s.publish(ctx, events.NewEvent(events.KindUpdated, a.ID, a.Status().String(), s.Now()))
	return a, nil
}

// Analytics aggregates every alarm over r.
func (s *Service) Analytics(ctx context.Context, r alarm.TimeRange) (aggregate.Report, error) {
	started := time.Now()
	rep, err := s.backend.Analytics(ctx, r, s.Now())
	metrics.ObserveAnalytics(s.backend.Mode(), time.Since(started))
	return rep, err
}

// Notify sends the current status of one alarm synchronously. Empty
// recipients fall back to the configured list.
func (s *Service) Notify(ctx context.Context, id string, recipients []string) error {
	if s.notifier == nil {
		return ErrNotificationsDisabled
	}
	alarms, err := s.backend.Alarms(ctx)
	if err != nil {
		return err
	}
	a, ok := alarm.Find(alarms, id)
	if !ok {
		return fmt.Errorf("%w: %s", alarm.ErrNotFound, id)
	}
	return s.notifier.Deliver(ctx, notification.MessageFor(a, recipients))
}

// DispatchChange queues msg for asynchronous delivery. It never blocks.
func (s *Service) DispatchChange(msg notification.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(msg)
}

// Publish forwards an event that did not originate from a Service call.
func (s *Service) Publish(ctx context.Context, ev events.Event) {
	s.publish(ctx, ev)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, ev)
}
