package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/mailer"
	"github.com/iliyamo/civic-incident-reporting/internal/metrics"
)

// Consumer drains the notification queue into a mailer.Sender.
type Consumer struct {
	URL    string
	Queue  string
	Sender mailer.Sender
	Log    *zap.SugaredLogger
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warnw("notification consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warnw("notification consumer: loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.Log.Warnw("notification consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch c.handle(ctx, d.Body, d.Redelivered) {
			case ack:
				_ = d.Ack(false)
			case retry:
				_ = d.Nack(false, true)
			default:
				_ = d.Nack(false, false)
			}
		}
	}
}

type outcome int

const (
	ack outcome = iota
	retry
	drop
)

// handle delivers one message. A failed send is retried once through the
// broker; malformed messages are dropped.
func (c *Consumer) handle(ctx context.Context, body []byte, redelivered bool) outcome {
	ev, err := decodeEvent(body)
	if err != nil {
		c.Log.Errorw("notification consumer: bad message dropped", "error", err)
		return drop
	}
	if err := c.Sender.Send(ctx, ev.Notification); err != nil {
		metrics.Notification(string(ev.Kind), "failed")
		c.Log.Warnw("notification consumer: send failed", "id", ev.ID, "kind", ev.Kind, "to", ev.RecipientEmail, "redelivered", redelivered, "error", err)
		if redelivered {
			return drop
		}
		return retry
	}
	metrics.Notification(string(ev.Kind), "sent")
	c.Log.Infow("notification sent", "id", ev.ID, "kind", ev.Kind, "to", ev.RecipientEmail)
	return ack
}
