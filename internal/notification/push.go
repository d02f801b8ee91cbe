package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"alarm-tracker-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionSource looks up and prunes push subscriptions.
type SubscriptionSource interface {
	SubscriptionsForAlarm(ctx context.Context, alarmID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

type pushPayload struct {
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	AlarmID string    `json:"alarmId"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}

// PushChannel sends browser push notifications to every subscription that
// watches the alarm.
type PushChannel struct {
	subs    SubscriptionSource
	options *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewPushChannel creates a push channel using the real webpush sender.
func NewPushChannel(subs SubscriptionSource, options *webpush.Options, logger *zap.Logger) *PushChannel {
	return &PushChannel{
		subs:    subs,
		options: options,
		sender:  &WebPushSender{},
		logger:  logger,
	}
}

func (p *PushChannel) Name() string { return "push" }

// Send notifies all subscribers of msg.AlarmID. Expired subscriptions (410)
// are deleted.
func (p *PushChannel) Send(ctx context.Context, msg Message) error {
	subscriptions, err := p.subs.SubscriptionsForAlarm(ctx, msg.AlarmID)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title:   msg.Subject(),
		Body:    msg.Description,
		AlarmID: msg.AlarmID,
		Status:  msg.Status.String(),
		At:      msg.LastStatusChangeTime.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	var errs []error
	for _, sub := range subscriptions {
		if err := p.sendOne(ctx, sub, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *PushChannel) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.options)
	if err != nil {
		return fmt.Errorf("failed to push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		p.logger.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := p.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			return fmt.Errorf("failed to delete expired subscription %s: %w", sub.Endpoint, err)
		}
		return nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push to %s returned %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
