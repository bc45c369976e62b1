package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

const (
	dialTimeout  = 2 * time.Second
	dialCooldown = 10 * time.Second
)

// ErrBrokerUnavailable is returned without dialing while a recent connection
// attempt is still cooling down.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// Publisher puts notifications on a durable queue as persistent messages.
// The connection is opened lazily and reopened after a failure. A failed
// dial is not retried for dialCooldown.
type Publisher struct {
	url   string
	queue string
	log   *zap.SugaredLogger
	now   func() time.Time

	mu          sync.Mutex
	conn        *amqp.Connection
	ch          *amqp.Channel
	failedAt    time.Time
	lastDialErr error
}

func NewPublisher(url, queue string, log *zap.SugaredLogger) *Publisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{url: url, queue: queue, log: log, now: time.Now}
}

// channel returns an open channel, dialing if needed. Callers hold p.mu.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()
	if !p.failedAt.IsZero() && p.now().Sub(p.failedAt) < dialCooldown {
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, p.lastDialErr)
	}
	conn, err := p.dial(ctx)
	if err != nil {
		p.failedAt, p.lastDialErr = p.now(), err
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	p.failedAt, p.lastDialErr = time.Time{}, nil
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// dial connects within dialTimeout or the ctx deadline, whichever is sooner.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
	timeout := dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		left := time.Until(dl)
		if left <= 0 {
			return nil, context.DeadlineExceeded
		}
		if left < timeout {
			timeout = left
		}
	}
	return amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// Notify publishes n. It implements service.Notifier.
func (p *Publisher) Notify(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(newEvent(n, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(n.Kind),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.closeLocked()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.Debugw("notification queued", "kind", n.Kind, "queue", p.queue)
	return nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
