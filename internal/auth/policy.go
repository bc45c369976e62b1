package auth

import (
	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// Caller is the identity behind a request, resolved from the user store on
// every request. A nil *Caller is an anonymous visitor.
type Caller struct {
	ID    uint64
	Name  string
	Email string
	Role  model.Role
}

// CallerFromUser copies the fields the policy needs.
func CallerFromUser(u model.User) *Caller {
	return &Caller{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (c *Caller) authenticated() bool { return c != nil && c.ID != 0 }

func (c *Caller) admin() bool { return c.authenticated() && c.Role == model.RoleAdmin }

// Action is an operation subject to authorization.
type Action string

const (
	ActionRead               Action = "read"
	ActionCreateIncident     Action = "create_incident"
	ActionUpdateIncident     Action = "update_incident"
	ActionDeleteIncident     Action = "delete_incident"
	ActionCreateComment      Action = "create_comment"
	ActionUploadMedia        Action = "upload_media"
	ActionDeleteMedia        Action = "delete_media"
	ActionUpdateStatus       Action = "update_incident_status"
	ActionAdminListIncidents Action = "admin_list_incidents"
	ActionCreditPoints       Action = "credit_points"
	ActionRedeemPoints       Action = "redeem_points"
	ActionViewAccount        Action = "view_account"
)

// Resource describes the target of an action. OwnerID is the created_by of
// the incident the action touches; zero when the action has no target.
type Resource struct {
	OwnerID uint64
}

func (r Resource) ownedBy(id uint64) bool {
	return r.OwnerID != 0 && r.OwnerID == id
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  string
	err     error
}

// Err returns nil when allowed, apperr.ErrUnauthenticated for anonymous
// callers and apperr.ErrUnauthorized otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.err
}

func allow() Decision { return Decision{Allowed: true} }

func deny(err error, reason string) Decision {
	return Decision{Reason: reason, err: err}
}

// Authorize is the single authorization decision for every operation. It is
// pure: the caller must already have checked that the resource exists, so
// a missing resource is reported as not-found rather than denied.
func Authorize(caller *Caller, action Action, res Resource) Decision {
	if action == ActionRead {
		return allow()
	}
	if !caller.authenticated() {
		return deny(apperr.ErrUnauthenticated, "authentication required")
	}
	switch action {
	case ActionCreateIncident, ActionCreateComment, ActionRedeemPoints, ActionViewAccount:
		return allow()
	case ActionUpdateIncident, ActionDeleteIncident, ActionUploadMedia, ActionDeleteMedia:
		if caller.admin() || res.ownedBy(caller.ID) {
			return allow()
		}
		return deny(apperr.ErrUnauthorized, "only the reporter or an admin may do this")
	case ActionUpdateStatus, ActionAdminListIncidents, ActionCreditPoints:
		if caller.admin() {
			return allow()
		}
		return deny(apperr.ErrUnauthorized, "admin access required")
	}
	return deny(apperr.ErrUnauthorized, "unknown action")
}
