package notification

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned by the email channel when neither the message
// nor the configuration names a recipient.
var ErrNoRecipients = errors.New("notification: no recipients")

// Channel delivers a message through one medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
