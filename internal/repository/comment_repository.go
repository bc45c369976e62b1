package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// CommentRepo appends and lists comments. There is no update or delete.
type CommentRepo struct {
	DB *sql.DB
}

func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{DB: db} }

// Create inserts c. A foreign key failure means the incident vanished
// between the caller's existence check and the insert.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO comments (text, incident_id, created_by) VALUES (?, ?, ?)`,
		c.Text, c.IncidentID, c.CreatedBy)
	if err != nil {
		if isMissingReference(err) {
			return fmt.Errorf("create comment: %w", apperr.ErrNotFound)
		}
		return fmt.Errorf("create comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	now := time.Now().UTC()
	c.ID = uint64(id)
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// ListByIncident returns comments oldest first.
func (r *CommentRepo) ListByIncident(ctx context.Context, incidentID uint64) ([]model.Comment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, text, incident_id, created_by, created_at, updated_at FROM comments WHERE incident_id = ? ORDER BY id ASC`,
		incidentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	items := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.Text, &c.IncidentID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list comments scan: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
