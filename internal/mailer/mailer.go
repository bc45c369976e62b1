// Package mailer delivers notifications as plain text email.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/config"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// Sender delivers a single notification.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// SMTP sends through an SMTP relay. A new connection is made per message;
// volumes are low and the queue consumer already serializes sends.
type SMTP struct {
	cfg config.SMTPConfig
}

// New returns an SMTP sender when a host is configured and a LogSender
// otherwise.
func New(cfg config.SMTPConfig, log *zap.SugaredLogger) Sender {
	if cfg.Host == "" {
		return &LogSender{Log: log}
	}
	return &SMTP{cfg: cfg}
}

func (s *SMTP) Send(ctx context.Context, n model.Notification) error {
	msg, err := buildMessage(s.cfg.From, n)
	if err != nil {
		return err
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Pass),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", n.RecipientEmail, err)
	}
	return nil
}

func buildMessage(from string, n model.Notification) (*mail.Msg, error) {
	if n.RecipientEmail == "" {
		return nil, errors.New("notification has no recipient")
	}
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(n.RecipientEmail); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)
	return msg, nil
}

// LogSender only logs notifications. It is used when no SMTP relay is
// configured.
type LogSender struct {
	Log *zap.SugaredLogger
}

func (s *LogSender) Send(_ context.Context, n model.Notification) error {
	if s.Log != nil {
		s.Log.Infow("email not sent, SMTP disabled",
			"kind", n.Kind,
			"to", n.RecipientEmail,
			"subject", n.Subject,
		)
	}
	return nil
}
