package model

// NotificationKind tells consumers why a notification was produced.
type NotificationKind string

const (
	NotifyStatusChanged NotificationKind = "incident.status_changed"
	NotifyPasswordReset NotificationKind = "auth.password_reset"
)

// Notification is an outbound message for a single recipient. IncidentID and
// NewStatus are only set for status change notifications.
type Notification struct {
	Kind           NotificationKind `json:"kind"`
	RecipientEmail string           `json:"recipient_email"`
	Subject        string           `json:"subject"`
	Body           string           `json:"body"`
	IncidentID     uint64           `json:"incident_id,omitempty"`
	NewStatus      IncidentStatus   `json:"new_status,omitempty"`
}
