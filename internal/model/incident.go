package model

import "time"

// IncidentStatus is the lifecycle state of a reported incident.
type IncidentStatus string

const (
	StatusPending       IncidentStatus = "pending"
	StatusInvestigating IncidentStatus = "investigating"
	StatusResolved      IncidentStatus = "resolved"
	StatusRejected      IncidentStatus = "rejected"
)

// Valid reports whether s is one of the four recognized statuses.
func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInvestigating, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is resolved or rejected.
func (s IncidentStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Incident represents a row in the `incidents` table. CreatedBy is fixed at
// insert time and no update statement writes it.
type Incident struct {
	ID          uint64         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Status      IncidentStatus `json:"status"`
	CreatedBy   uint64         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IncidentFilter narrows incident listings. Zero values match everything.
type IncidentFilter struct {
	Status    IncidentStatus
	CreatedBy uint64
}
