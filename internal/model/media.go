package model

import "time"

// Media records a file that the storage backend has already accepted. Only
// metadata lives in the database.
type Media struct {
	ID         uint64    `json:"id"`
	Filename   string    `json:"filename"`
	FileURL    string    `json:"file_url"`
	IncidentID uint64    `json:"incident_id"`
	UploadedBy uint64    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
