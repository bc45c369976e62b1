package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

const mediaColumns = "id, filename, file_url, incident_id, uploaded_by, created_at, updated_at"

// MediaRepo stores metadata for files accepted by the storage backend.
type MediaRepo struct {
	DB *sql.DB
}

func NewMediaRepo(db *sql.DB) *MediaRepo { return &MediaRepo{DB: db} }

func scanMedia(row interface{ Scan(...any) error }) (model.Media, error) {
	var m model.Media
	err := row.Scan(&m.ID, &m.Filename, &m.FileURL, &m.IncidentID, &m.UploadedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// Create records metadata for an accepted file.
func (r *MediaRepo) Create(ctx context.Context, m *model.Media) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO media (filename, file_url, incident_id, uploaded_by) VALUES (?, ?, ?, ?)`,
		m.Filename, m.FileURL, m.IncidentID, m.UploadedBy)
	if err != nil {
		if isMissingReference(err) {
			return fmt.Errorf("create media: %w", apperr.ErrNotFound)
		}
		return fmt.Errorf("create media: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	now := time.Now().UTC()
	m.ID = uint64(id)
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

// GetByID returns media metadata or apperr.ErrNotFound.
func (r *MediaRepo) GetByID(ctx context.Context, id uint64) (model.Media, error) {
	m, err := scanMedia(r.DB.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE id = ?", id))
	if err != nil {
		return model.Media{}, notFound(err, "get media")
	}
	return m, nil
}

// ListByIncident returns the media attached to an incident.
func (r *MediaRepo) ListByIncident(ctx context.Context, incidentID uint64) ([]model.Media, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE incident_id = ? ORDER BY id ASC", incidentID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return collectMedia(rows)
}

// Delete removes the metadata row.
func (r *MediaRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete media: %w", apperr.ErrNotFound)
	}
	return nil
}

func listMediaTx(ctx context.Context, tx *sql.Tx, incidentID uint64) ([]model.Media, error) {
	rows, err := tx.QueryContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE incident_id = ?", incidentID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return collectMedia(rows)
}

func collectMedia(rows *sql.Rows) ([]model.Media, error) {
	defer rows.Close()
	items := []model.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("list media scan: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
