package service

import (
	"fmt"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// NextStatus validates an administrative status change. Any of
// investigating, resolved or rejected is accepted from any current state;
// pending is never a target and unknown values fail with
// apperr.ErrInvalidStatus.
func NextStatus(current model.IncidentStatus, target string) (model.IncidentStatus, error) {
	next := model.IncidentStatus(target)
	if !next.Valid() || next == model.StatusPending {
		return current, fmt.Errorf("%w: %q", apperr.ErrInvalidStatus, target)
	}
	return next, nil
}

func statusNotification(inc model.Incident, reporter model.User) model.Notification {
	return model.Notification{
		Kind:           model.NotifyStatusChanged,
		RecipientEmail: reporter.Email,
		Subject:        fmt.Sprintf("Incident #%d Status Updated", inc.ID),
		Body: fmt.Sprintf("Hi %s,\n\nYour incident '%s' status has been updated to '%s'.\n",
			reporter.Name, inc.Title, inc.Status),
		IncidentID: inc.ID,
		NewStatus:  inc.Status,
	}
}
