// Package servicetest provides in-memory implementations of the service
// stores and collaborators for tests.
package servicetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// DB is a tiny in-memory database. One mutex guards every table, which
// gives the same per-row serialization the MySQL stores get from row locks.
type DB struct {
	mu        sync.Mutex
	nextID    uint64
	users     map[uint64]model.User
	incidents map[uint64]model.Incident
	comments  map[uint64]model.Comment
	media     map[uint64]model.Media
}

func NewDB() *DB {
	return &DB{
		users:     map[uint64]model.User{},
		incidents: map[uint64]model.Incident{},
		comments:  map[uint64]model.Comment{},
		media:     map[uint64]model.Media{},
	}
}

func (db *DB) id() uint64 {
	db.nextID++
	return db.nextID
}

func (db *DB) Users() *Users         { return &Users{db} }
func (db *DB) Incidents() *Incidents { return &Incidents{db} }
func (db *DB) Comments() *Comments   { return &Comments{db} }
func (db *DB) Media() *Media         { return &Media{db} }

// Users implements service.UserStore.
type Users struct{ db *DB }

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range s.db.users {
		if other.Email == u.Email || other.Phone == u.Phone {
			return fmt.Errorf("create user: %w", apperr.ErrDuplicateIdentity)
		}
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := time.Now().UTC()
	u.ID = s.db.id()
	u.CreatedAt, u.UpdatedAt = now, now
	s.db.users[u.ID] = *u
	return nil
}

func (s *Users) find(match func(model.User) bool) (model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("get user: %w", apperr.ErrNotFound)
}

func (s *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u model.User) bool { return u.Email == email })
}

func (s *Users) GetByPhone(_ context.Context, phone string) (model.User, error) {
	return s.find(func(u model.User) bool { return u.Phone == phone })
}

func (s *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == id })
}

func (s *Users) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return fmt.Errorf("update password: %w", apperr.ErrNotFound)
	}
	u.PasswordHash = hash
	s.db.users[id] = u
	return nil
}

func (s *Users) AdjustPoints(_ context.Context, id uint64, fn func(int64) (int64, error)) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return 0, fmt.Errorf("lock user points: %w", apperr.ErrNotFound)
	}
	next, err := fn(u.Points)
	if err != nil {
		return 0, err
	}
	u.Points = next
	s.db.users[id] = u
	return next, nil
}

func (s *Users) Leaderboard(_ context.Context, limit int) ([]model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]model.User, 0, len(s.db.users))
	for _, u := range s.db.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Users) HasAdmin(context.Context) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.IsAdmin() {
			return true, nil
		}
	}
	return false, nil
}

// SetRole changes a stored user's role.
func (s *Users) SetRole(id uint64, role model.Role) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u := s.db.users[id]
	u.Role = role
	s.db.users[id] = u
}

// Incidents implements service.IncidentStore.
type Incidents struct{ db *DB }

func (s *Incidents) Create(_ context.Context, inc *model.Incident) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[inc.CreatedBy]; !ok {
		return fmt.Errorf("create incident: reporter: %w", apperr.ErrNotFound)
	}
	now := time.Now().UTC()
	inc.ID = s.db.id()
	inc.Status = model.StatusPending
	inc.CreatedAt, inc.UpdatedAt = now, now
	s.db.incidents[inc.ID] = *inc
	return nil
}

func (s *Incidents) GetByID(_ context.Context, id uint64) (model.Incident, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inc, ok := s.db.incidents[id]
	if !ok {
		return model.Incident{}, fmt.Errorf("get incident: %w", apperr.ErrNotFound)
	}
	return inc, nil
}

func (s *Incidents) List(_ context.Context, f model.IncidentFilter) ([]model.Incident, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Incident{}
	for _, inc := range s.db.incidents {
		if f.Status != "" && inc.Status != f.Status {
			continue
		}
		if f.CreatedBy != 0 && inc.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Incidents) Update(_ context.Context, id uint64, fn func(*model.Incident) error) (model.Incident, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inc, ok := s.db.incidents[id]
	if !ok {
		return model.Incident{}, fmt.Errorf("lock incident: %w", apperr.ErrNotFound)
	}
	work := inc
	if err := fn(&work); err != nil {
		return model.Incident{}, err
	}
	work.ID, work.CreatedBy, work.CreatedAt = inc.ID, inc.CreatedBy, inc.CreatedAt
	work.UpdatedAt = time.Now().UTC()
	s.db.incidents[id] = work
	return work, nil
}

func (s *Incidents) Delete(_ context.Context, id uint64, check func(model.Incident) error) ([]model.Media, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inc, ok := s.db.incidents[id]
	if !ok {
		return nil, fmt.Errorf("lock incident: %w", apperr.ErrNotFound)
	}
	if err := check(inc); err != nil {
		return nil, err
	}
	removed := []model.Media{}
	for mid, m := range s.db.media {
		if m.IncidentID == id {
			removed = append(removed, m)
			delete(s.db.media, mid)
		}
	}
	for cid, c := range s.db.comments {
		if c.IncidentID == id {
			delete(s.db.comments, cid)
		}
	}
	delete(s.db.incidents, id)
	return removed, nil
}

// Comments implements service.CommentStore.
type Comments struct{ db *DB }

func (s *Comments) Create(_ context.Context, c *model.Comment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.incidents[c.IncidentID]; !ok {
		return fmt.Errorf("create comment: %w", apperr.ErrNotFound)
	}
	now := time.Now().UTC()
	c.ID = s.db.id()
	c.CreatedAt, c.UpdatedAt = now, now
	s.db.comments[c.ID] = *c
	return nil
}

func (s *Comments) ListByIncident(_ context.Context, incidentID uint64) ([]model.Comment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Comment{}
	for _, c := range s.db.comments {
		if c.IncidentID == incidentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Media implements service.MediaStore.
type Media struct{ db *DB }

func (s *Media) Create(_ context.Context, m *model.Media) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.incidents[m.IncidentID]; !ok {
		return fmt.Errorf("create media: %w", apperr.ErrNotFound)
	}
	now := time.Now().UTC()
	m.ID = s.db.id()
	m.CreatedAt, m.UpdatedAt = now, now
	s.db.media[m.ID] = *m
	return nil
}

func (s *Media) GetByID(_ context.Context, id uint64) (model.Media, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.media[id]
	if !ok {
		return model.Media{}, fmt.Errorf("get media: %w", apperr.ErrNotFound)
	}
	return m, nil
}

func (s *Media) ListByIncident(_ context.Context, incidentID uint64) ([]model.Media, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Media{}
	for _, m := range s.db.media {
		if m.IncidentID == incidentID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Media) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.media[id]; !ok {
		return fmt.Errorf("delete media: %w", apperr.ErrNotFound)
	}
	delete(s.db.media, id)
	return nil
}

// Outbox records notifications. Set Err to make Notify fail.
type Outbox struct {
	mu   sync.Mutex
	sent []model.Notification
	Err  error
}

func (o *Outbox) Notify(_ context.Context, n model.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.sent = append(o.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (o *Outbox) Sent() []model.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.Notification(nil), o.sent...)
}

// Files keeps uploads in memory.
type Files struct {
	mu    sync.Mutex
	n     int
	files map[string][]byte
}

func NewFiles() *Files { return &Files{files: map[string][]byte{}} }

func (f *Files) Save(_ context.Context, ext string, r io.Reader) (string, string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	name := fmt.Sprintf("file-%d.%s", f.n, ext)
	f.files[name] = buf.Bytes()
	return name, "/uploads/" + name, nil
}

func (f *Files) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		return fmt.Errorf("remove %s: no such file", name)
	}
	delete(f.files, name)
	return nil
}

// Has reports whether name is stored.
func (f *Files) Has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[name]
	return ok
}
