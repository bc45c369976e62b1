// Package service holds the business rules of the incident reporting API:
// accounts and credentials, the incident lifecycle and the points ledger.
// Persistence and delivery are reached through the interfaces below so the
// same rules run against MySQL in production and in-memory stores in tests.
package service

import (
	"context"
	"io"

	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// UserStore persists accounts and their point balances.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	// AdjustPoints serializes read-modify-write of a single balance.
	AdjustPoints(ctx context.Context, id uint64, fn func(current int64) (int64, error)) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]model.User, error)
	HasAdmin(ctx context.Context) (bool, error)
}

// IncidentStore persists incidents. Update and Delete hold the incident
// exclusively while fn runs.
type IncidentStore interface {
	Create(ctx context.Context, inc *model.Incident) error
	GetByID(ctx context.Context, id uint64) (model.Incident, error)
	List(ctx context.Context, f model.IncidentFilter) ([]model.Incident, error)
	Update(ctx context.Context, id uint64, fn func(inc *model.Incident) error) (model.Incident, error)
	Delete(ctx context.Context, id uint64, check func(inc model.Incident) error) ([]model.Media, error)
}

type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	ListByIncident(ctx context.Context, incidentID uint64) ([]model.Comment, error)
}

type MediaStore interface {
	Create(ctx context.Context, m *model.Media) error
	GetByID(ctx context.Context, id uint64) (model.Media, error)
	ListByIncident(ctx context.Context, incidentID uint64) ([]model.Media, error)
	Delete(ctx context.Context, id uint64) error
}

// FileStore keeps uploaded bytes. Save picks the stored name and returns it
// with the public URL it is served under.
type FileStore interface {
	Save(ctx context.Context, ext string, r io.Reader) (name, url string, err error)
	Remove(ctx context.Context, name string) error
}

// Notifier hands a message to the delivery pipeline. Failures never undo the
// operation that produced the message.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n model.Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n model.Notification) error { return f(ctx, n) }
