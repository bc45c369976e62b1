// Package queue carries notifications over RabbitMQ: the API publishes
// them and a background consumer hands them to the mailer.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// NotificationEvent is the message body on the notification queue.
type NotificationEvent struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	model.Notification
}

func newEvent(n model.Notification, now time.Time) NotificationEvent {
	return NotificationEvent{ID: uuid.NewString(), CreatedAt: now.UTC(), Notification: n}
}

func decodeEvent(body []byte) (NotificationEvent, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return NotificationEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.RecipientEmail == "" {
		return NotificationEvent{}, fmt.Errorf("event %s has no recipient", ev.ID)
	}
	return ev, nil
}
