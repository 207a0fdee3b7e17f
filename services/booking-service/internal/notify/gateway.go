// Package notify is the delivery boundary for reminders. The gateway reports
// delivery as a bool; transport errors and non-delivery both take the retry
// path in the reminder engine.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

var ErrNoRecipient = errors.New("recipient not on file")

type Gateway interface {
	Send(ctx context.Context, channel model.ReminderChannel, recipient, subject, body string) (delivered bool, err error)
}

type EmailSender interface {
	Send(to string, subject string, body string) error
}

type SMSSender interface {
	Send(ctx context.Context, to string, body string) error
}

// Dispatcher routes a reminder channel to its provider. Push has no provider
// and always reports non-delivery.
type Dispatcher struct {
	email  EmailSender
	sms    SMSSender
	logger *slog.Logger
}

func NewDispatcher(email EmailSender, sms SMSSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{email: email, sms: sms, logger: logger}
}

func (d *Dispatcher) Send(ctx context.Context, channel model.ReminderChannel, recipient, subject, body string) (bool, error) {
	if strings.TrimSpace(recipient) == "" {
		return false, ErrNoRecipient
	}

	switch channel {
	case model.ChannelEmail:
		if d.email == nil {
			return false, errors.New("email sender not configured")
		}
		if err := d.email.Send(recipient, subject, body); err != nil {
			return false, err
		}
		return true, nil
	case model.ChannelSMS:
		if d.sms == nil {
			return false, errors.New("sms sender not configured")
		}
		if err := d.sms.Send(ctx, recipient, body); err != nil {
			return false, err
		}
		return true, nil
	case model.ChannelPush:
		d.logger.Warn("push notifications not implemented", "recipient", recipient)
		return false, nil
	default:
		return false, fmt.Errorf("unknown channel %q", channel)
	}
}
