package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/database"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

const incidentColumns = "id,title,description,latitude,longitude,status,created_by,created_at,updated_at"

// IncidentRepo provides access to the incidents table. Mutations of an
// existing incident go through Update or Delete, which hold the row lock for
// the whole read-modify-write.
type IncidentRepo struct {
	DB *sql.DB
}

// NewIncidentRepo returns a new IncidentRepo bound to the provided database.
func NewIncidentRepo(db *sql.DB) *IncidentRepo { return &IncidentRepo{DB: db} }

func scanIncident(row interface{ Scan(...any) error }) (model.Incident, error) {
	var i model.Incident
	err := row.Scan(&i.ID, &i.Title, &i.Description, &i.Latitude, &i.Longitude, &i.Status, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

// Create inserts a new incident and sets its generated ID. The status is
// always pending.
func (r *IncidentRepo) Create(ctx context.Context, inc *model.Incident) error {
	inc.Status = model.StatusPending
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO incidents (title, description, latitude, longitude, status, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		inc.Title, inc.Description, inc.Latitude, inc.Longitude, string(inc.Status), inc.CreatedBy)
	if err != nil {
		if isMissingReference(err) {
			return fmt.Errorf("create incident: reporter: %w", apperr.ErrNotFound)
		}
		return fmt.Errorf("create incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	now := time.Now().UTC()
	inc.ID = uint64(id)
	inc.CreatedAt, inc.UpdatedAt = now, now
	return nil
}

// GetByID returns an incident or apperr.ErrNotFound.
func (r *IncidentRepo) GetByID(ctx context.Context, id uint64) (model.Incident, error) {
	inc, err := scanIncident(r.DB.QueryRowContext(ctx,
		"SELECT "+incidentColumns+" FROM incidents WHERE id = ?", id))
	if err != nil {
		return model.Incident{}, notFound(err, "get incident")
	}
	return inc, nil
}

// List returns incidents matching f, newest first.
func (r *IncidentRepo) List(ctx context.Context, f model.IncidentFilter) ([]model.Incident, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CreatedBy != 0 {
		where = append(where, "created_by = ?")
		args = append(args, f.CreatedBy)
	}
	q := "SELECT " + incidentColumns + " FROM incidents"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()
	items := []model.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("list incidents scan: %w", err)
		}
		items = append(items, inc)
	}
	return items, rows.Err()
}

func lockIncidentTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Incident, error) {
	inc, err := scanIncident(tx.QueryRowContext(ctx,
		"SELECT "+incidentColumns+" FROM incidents WHERE id = ? FOR UPDATE", id))
	if err != nil {
		return model.Incident{}, notFound(err, "lock incident")
	}
	return inc, nil
}

// Update locks the incident, lets fn mutate a copy and writes the mutable
// columns back. created_by is never written. If fn returns an error the
// transaction is rolled back and the error returned as is.
func (r *IncidentRepo) Update(ctx context.Context, id uint64, fn func(inc *model.Incident) error) (model.Incident, error) {
	var out model.Incident
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		inc, err := lockIncidentTx(ctx, tx, id)
		if err != nil {
			return err
		}
		owner := inc.CreatedBy
		if err := fn(&inc); err != nil {
			return err
		}
		inc.ID, inc.CreatedBy = id, owner
		inc.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE incidents SET title = ?, description = ?, latitude = ?, longitude = ?, status = ?, updated_at = ? WHERE id = ?`,
			inc.Title, inc.Description, inc.Latitude, inc.Longitude, string(inc.Status), inc.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("update incident: %w", err)
		}
		out = inc
		return nil
	})
	if err != nil {
		return model.Incident{}, err
	}
	return out, nil
}

// Delete locks the incident, asks check whether the delete may proceed and
// then removes the incident with its comments and media rows. The removed
// media rows are returned so the caller can clean up stored files.
func (r *IncidentRepo) Delete(ctx context.Context, id uint64, check func(inc model.Incident) error) ([]model.Media, error) {
	var removed []model.Media
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		inc, err := lockIncidentTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(inc); err != nil {
			return err
		}
		media, err := listMediaTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE incident_id = ?`, id); err != nil {
			return fmt.Errorf("delete incident comments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE incident_id = ?`, id); err != nil {
			return fmt.Errorf("delete incident media: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM incidents WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete incident: %w", err)
		}
		removed = media
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
