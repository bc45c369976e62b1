package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/metrics"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// AllowedMediaExtensions lists the upload types accepted for incidents.
var AllowedMediaExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
	"mp4": true, "mov": true, "avi": true,
}

// IncidentService owns the incident lifecycle together with the comments
// and media attached to an incident.
type IncidentService struct {
	incidents IncidentStore
	comments  CommentStore
	media     MediaStore
	users     UserStore
	files     FileStore
	notifier  Notifier
	log       *zap.SugaredLogger
}

func NewIncidentService(incidents IncidentStore, comments CommentStore, media MediaStore, users UserStore, files FileStore, notifier Notifier, log *zap.SugaredLogger) *IncidentService {
	if incidents == nil || comments == nil || media == nil || users == nil || files == nil || notifier == nil {
		panic("nil dependency passed to NewIncidentService")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &IncidentService{
		incidents: incidents,
		comments:  comments,
		media:     media,
		users:     users,
		files:     files,
		notifier:  notifier,
		log:       log,
	}
}

// Create files a new incident in pending owned by the caller.
func (s *IncidentService) Create(ctx context.Context, caller *auth.Caller, in IncidentInput) (model.Incident, error) {
	if err := auth.Authorize(caller, auth.ActionCreateIncident, auth.Resource{}).Err(); err != nil {
		return model.Incident{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate(in); err != nil {
		return model.Incident{}, err
	}
	inc := model.Incident{
		Title:       in.Title,
		Description: in.Description,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		CreatedBy:   caller.ID,
	}
	if err := s.incidents.Create(ctx, &inc); err != nil {
		return model.Incident{}, err
	}
	s.log.Infow("incident reported", "incident_id", inc.ID, "user_id", caller.ID)
	return inc, nil
}

func (s *IncidentService) Get(ctx context.Context, id uint64) (model.Incident, error) {
	return s.incidents.GetByID(ctx, id)
}

// List returns every incident; anyone may read.
func (s *IncidentService) List(ctx context.Context) ([]model.Incident, error) {
	return s.incidents.List(ctx, model.IncidentFilter{})
}

// ListMine returns the incidents reported by the caller.
func (s *IncidentService) ListMine(ctx context.Context, caller *auth.Caller) ([]model.Incident, error) {
	if err := auth.Authorize(caller, auth.ActionViewAccount, auth.Resource{}).Err(); err != nil {
		return nil, err
	}
	return s.incidents.List(ctx, model.IncidentFilter{CreatedBy: caller.ID})
}

// AdminList returns all incidents, optionally narrowed to one status.
func (s *IncidentService) AdminList(ctx context.Context, caller *auth.Caller, status string) ([]model.Incident, error) {
	if err := auth.Authorize(caller, auth.ActionAdminListIncidents, auth.Resource{}).Err(); err != nil {
		return nil, err
	}
	f := model.IncidentFilter{Status: model.IncidentStatus(status)}
	if status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidStatus, status)
	}
	return s.incidents.List(ctx, f)
}

// Update applies a partial change. The incident must exist before the caller
// is checked; a status field additionally requires an admin and goes
// through NextStatus.
func (s *IncidentService) Update(ctx context.Context, caller *auth.Caller, id uint64, p IncidentPatch) (model.Incident, error) {
	p.normalize()
	if err := validate(p); err != nil {
		return model.Incident{}, err
	}
	var prev model.IncidentStatus
	inc, err := s.incidents.Update(ctx, id, func(inc *model.Incident) error {
		res := auth.Resource{OwnerID: inc.CreatedBy}
		if err := auth.Authorize(caller, auth.ActionUpdateIncident, res).Err(); err != nil {
			return err
		}
		prev = inc.Status
		if p.Status != nil {
			if err := auth.Authorize(caller, auth.ActionUpdateStatus, res).Err(); err != nil {
				return err
			}
			next, err := NextStatus(inc.Status, *p.Status)
			if err != nil {
				return err
			}
			inc.Status = next
		}
		if p.Title != nil {
			inc.Title = *p.Title
		}
		if p.Description != nil {
			inc.Description = *p.Description
		}
		if p.Latitude != nil {
			inc.Latitude = *p.Latitude
		}
		if p.Longitude != nil {
			inc.Longitude = *p.Longitude
		}
		return nil
	})
	if err != nil {
		return model.Incident{}, err
	}
	if p.Status != nil {
		s.statusChanged(ctx, prev, inc)
	}
	return inc, nil
}

// UpdateStatus is the administrative transition. Every successful call
// notifies the reporter once the change is committed.
func (s *IncidentService) UpdateStatus(ctx context.Context, caller *auth.Caller, id uint64, status string) (model.Incident, error) {
	var prev model.IncidentStatus
	inc, err := s.incidents.Update(ctx, id, func(inc *model.Incident) error {
		if err := auth.Authorize(caller, auth.ActionUpdateStatus, auth.Resource{OwnerID: inc.CreatedBy}).Err(); err != nil {
			return err
		}
		next, err := NextStatus(inc.Status, status)
		if err != nil {
			return err
		}
		prev, inc.Status = inc.Status, next
		return nil
	})
	if err != nil {
		return model.Incident{}, err
	}
	s.statusChanged(ctx, prev, inc)
	return inc, nil
}

func (s *IncidentService) statusChanged(ctx context.Context, prev model.IncidentStatus, inc model.Incident) {
	metrics.StatusTransition(string(inc.Status))
	s.log.Infow("incident status changed", "incident_id", inc.ID, "from", prev, "to", inc.Status)
	reporter, err := s.users.GetByID(ctx, inc.CreatedBy)
	if err != nil {
		metrics.Notification(string(model.NotifyStatusChanged), "failed")
		s.log.Warnw("reporter lookup failed, no notification sent", "incident_id", inc.ID, "error", err)
		return
	}
	deliver(ctx, s.notifier, s.log, statusNotification(inc, reporter))
}

// Delete removes an incident with its comments and media. Stored files are
// removed after the rows are gone; a file that cannot be removed is logged.
func (s *IncidentService) Delete(ctx context.Context, caller *auth.Caller, id uint64) error {
	removed, err := s.incidents.Delete(ctx, id, func(inc model.Incident) error {
		return auth.Authorize(caller, auth.ActionDeleteIncident, auth.Resource{OwnerID: inc.CreatedBy}).Err()
	})
	if err != nil {
		return err
	}
	for _, m := range removed {
		s.removeFile(ctx, m)
	}
	s.log.Infow("incident deleted", "incident_id", id, "user_id", caller.ID, "media_removed", len(removed))
	return nil
}

// AddComment appends a comment to an existing incident.
func (s *IncidentService) AddComment(ctx context.Context, caller *auth.Caller, incidentID uint64, in CommentInput) (model.Comment, error) {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return model.Comment{}, err
	}
	if err := auth.Authorize(caller, auth.ActionCreateComment, auth.Resource{OwnerID: inc.CreatedBy}).Err(); err != nil {
		return model.Comment{}, err
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := validate(in); err != nil {
		return model.Comment{}, err
	}
	c := model.Comment{Text: in.Text, IncidentID: inc.ID, CreatedBy: caller.ID}
	if err := s.comments.Create(ctx, &c); err != nil {
		return model.Comment{}, err
	}
	return c, nil
}

func (s *IncidentService) ListComments(ctx context.Context, incidentID uint64) ([]model.Comment, error) {
	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.comments.ListByIncident(ctx, incidentID)
}

// AttachMedia stores an upload for an incident and records its metadata.
func (s *IncidentService) AttachMedia(ctx context.Context, caller *auth.Caller, incidentID uint64, filename string, r io.Reader) (model.Media, error) {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return model.Media{}, err
	}
	if err := auth.Authorize(caller, auth.ActionUploadMedia, auth.Resource{OwnerID: inc.CreatedBy}).Err(); err != nil {
		return model.Media{}, err
	}
	ext, err := mediaExtension(filename)
	if err != nil {
		return model.Media{}, err
	}
	name, fileURL, err := s.files.Save(ctx, ext, r)
	if err != nil {
		return model.Media{}, fmt.Errorf("store upload: %w", err)
	}
	m := model.Media{Filename: name, FileURL: fileURL, IncidentID: inc.ID, UploadedBy: caller.ID}
	if err := s.media.Create(ctx, &m); err != nil {
		s.removeFile(ctx, m)
		return model.Media{}, err
	}
	return m, nil
}

func mediaExtension(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", apperr.Invalid("file", "no file selected")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !AllowedMediaExtensions[ext] {
		return "", apperr.Invalid("file", "file type not allowed")
	}
	return ext, nil
}

// DeleteMedia removes an attachment. Only the incident's reporter and admins
// may do this; having uploaded the file grants nothing.
func (s *IncidentService) DeleteMedia(ctx context.Context, caller *auth.Caller, mediaID uint64) error {
	m, err := s.media.GetByID(ctx, mediaID)
	if err != nil {
		return err
	}
	inc, err := s.incidents.GetByID(ctx, m.IncidentID)
	if err != nil {
		return err
	}
	if err := auth.Authorize(caller, auth.ActionDeleteMedia, auth.Resource{OwnerID: inc.CreatedBy}).Err(); err != nil {
		return err
	}
	if err := s.media.Delete(ctx, m.ID); err != nil {
		return err
	}
	s.removeFile(ctx, m)
	return nil
}

func (s *IncidentService) removeFile(ctx context.Context, m model.Media) {
	if err := s.files.Remove(ctx, m.Filename); err != nil {
		s.log.Warnw("stored file not removed", "media_id", m.ID, "file", m.Filename, "error", err)
	}
}
