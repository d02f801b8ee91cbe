package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"alarm-tracker-backend/config"
)

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type emailResponse struct {
	ID string `json:"id"`
}

// EmailChannel sends messages through the Resend HTTP API.
type EmailChannel struct {
	httpClient *resty.Client
	from       string
	recipients []string
	logger     *zap.Logger
}

// NewEmailChannel creates an email channel from cfg.
func NewEmailChannel(cfg config.EmailConfig, logger *zap.Logger) (*EmailChannel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("email channel: empty api key")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &EmailChannel{
		httpClient: client,
		from:       cfg.From,
		recipients: cfg.Recipients,
		logger:     logger,
	}, nil
}

func (e *EmailChannel) Name() string { return "email" }

// Send posts one email. Message recipients win over the configured list.
func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	to := msg.Recipients
	if len(to) == 0 {
		to = e.recipients
	}
	if len(to) == 0 {
		return ErrNoRecipients
	}

	html, err := msg.HTML()
	if err != nil {
		return err
	}

	var result emailResponse
	resp, err := e.httpClient.R().
		SetContext(ctx).
		SetBody(emailRequest{From: e.from, To: to, Subject: msg.Subject(), HTML: html}).
		SetResult(&result).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("failed to call email API: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode(), resp.String())
	}

	e.logger.Info("email sent",
		zap.String("alarm_id", msg.AlarmID),
		zap.String("email_id", result.ID),
		zap.Int("recipients", len(to)),
	)
	return nil
}
