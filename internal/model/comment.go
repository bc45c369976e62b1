package model

import "time"

// Comment is an append-only note attached to an incident.
type Comment struct {
	ID         uint64    `json:"id"`
	Text       string    `json:"text"`
	IncidentID uint64    `json:"incident_id"`
	CreatedBy  uint64    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
