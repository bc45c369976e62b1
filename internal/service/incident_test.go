package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
	"github.com/iliyamo/civic-incident-reporting/internal/service/servicetest"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	env      *servicetest.Env
	owner    *auth.Caller
	stranger *auth.Caller
	admin    *auth.Caller
	incident model.Incident
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	env := servicetest.New(t)
	owner := signup(t, env, "Owner", "owner@x.com", "1")
	stranger := signup(t, env, "Stranger", "stranger@x.com", "2")
	admin, err := env.Accounts.SeedAdmin(context.Background(), service.SignupInput{Name: "Admin", Email: "admin@x.com", Phone: "3", Password: "p"})
	require.NoError(t, err)

	f := fixture{
		env:      env,
		owner:    auth.CallerFromUser(owner),
		stranger: auth.CallerFromUser(stranger),
		admin:    auth.CallerFromUser(admin),
	}
	f.incident, err = env.Incidents.Create(context.Background(), f.owner, service.IncidentInput{
		Title: "Broken light", Description: "Dark corner", Latitude: ptr(0.0), Longitude: ptr(12.5),
	})
	require.NoError(t, err)
	return f
}

func (f fixture) status(t *testing.T) model.IncidentStatus {
	t.Helper()
	inc, err := f.env.Incidents.Get(context.Background(), f.incident.ID)
	require.NoError(t, err)
	return inc.Status
}

func TestCreateIncident(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, model.StatusPending, f.incident.Status)
	assert.Equal(t, f.owner.ID, f.incident.CreatedBy)
	assert.Equal(t, 0.0, f.incident.Latitude)

	_, err := f.env.Incidents.Create(context.Background(), nil, service.IncidentInput{Title: "t", Description: "d", Latitude: ptr(1.0), Longitude: ptr(1.0)})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = f.env.Incidents.Create(context.Background(), f.owner, service.IncidentInput{Title: "t", Description: "d", Latitude: ptr(1.0)})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "longitude")
}

func TestBogusStatusLeavesStatusUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, s := range []string{"bogus", "pending", "", "RESOLVED"} {
		_, err := f.env.Incidents.UpdateStatus(ctx, f.admin, f.incident.ID, s)
		assert.ErrorIs(t, err, apperr.ErrInvalidStatus, s)
		assert.Equal(t, model.StatusPending, f.status(t))
	}
	assert.Empty(t, f.env.Outbox.Sent())
}

func TestStatusUpdateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Incidents.UpdateStatus(ctx, f.owner, f.incident.ID, "resolved")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, model.StatusPending, f.status(t))

	inc, err := f.env.Incidents.UpdateStatus(ctx, f.admin, f.incident.ID, "resolved")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, inc.Status)

	sent := f.env.Outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@x.com", sent[0].RecipientEmail)
	assert.Equal(t, f.incident.ID, sent[0].IncidentID)
	assert.Equal(t, model.StatusResolved, sent[0].NewStatus)
	assert.Contains(t, sent[0].Body, "resolved")
}

func TestStatusUpdateToleratesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.env.Outbox.Err = assert.AnError

	inc, err := f.env.Incidents.UpdateStatus(context.Background(), f.admin, f.incident.ID, "investigating")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvestigating, inc.Status)
}

func TestMissingIncidentBeatsAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Incidents.UpdateStatus(ctx, f.stranger, 9999, "resolved")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.env.Incidents.Update(ctx, f.stranger, 9999, service.IncidentPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.env.Incidents.Delete(ctx, f.stranger, 9999), apperr.ErrNotFound)
}

func TestNonOwnerCannotModify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Incidents.Update(ctx, f.stranger, f.incident.ID, service.IncidentPatch{Title: ptr("mine now")})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.ErrorIs(t, f.env.Incidents.Delete(ctx, f.stranger, f.incident.ID), apperr.ErrUnauthorized)

	inc, err := f.env.Incidents.Get(ctx, f.incident.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken light", inc.Title)
}

func TestOwnerPartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inc, err := f.env.Incidents.Update(ctx, f.owner, f.incident.ID, service.IncidentPatch{Description: ptr("Still dark"), Latitude: ptr(3.5)})
	require.NoError(t, err)
	assert.Equal(t, "Broken light", inc.Title)
	assert.Equal(t, "Still dark", inc.Description)
	assert.Equal(t, 3.5, inc.Latitude)
	assert.Equal(t, 12.5, inc.Longitude)
	assert.Equal(t, f.owner.ID, inc.CreatedBy)

	_, err = f.env.Incidents.Update(ctx, f.owner, f.incident.ID, service.IncidentPatch{Title: ptr("")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPatchRejectsBlankText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Incidents.Update(ctx, f.owner, f.incident.ID, service.IncidentPatch{Title: ptr("   ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.env.Incidents.Update(ctx, f.owner, f.incident.ID, service.IncidentPatch{Description: ptr("\t \n")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	inc, err := f.env.Incidents.Get(ctx, f.incident.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken light", inc.Title)
	assert.NotEmpty(t, inc.Description)

	title := "  Flickering light  "
	inc, err = f.env.Incidents.Update(ctx, f.owner, f.incident.ID, service.IncidentPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Flickering light", inc.Title)
	assert.Equal(t, "  Flickering light  ", title)
}

func TestOwnerCannotChangeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Incidents.Update(ctx, f.owner, f.incident.ID, service.IncidentPatch{Title: ptr("new"), Status: ptr("resolved")})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	inc, err := f.env.Incidents.Get(ctx, f.incident.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken light", inc.Title)
	assert.Equal(t, model.StatusPending, inc.Status)
}

func TestAdminPatchRunsStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Incidents.Update(ctx, f.admin, f.incident.ID, service.IncidentPatch{Status: ptr("bogus")})
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
	assert.Equal(t, model.StatusPending, f.status(t))

	inc, err := f.env.Incidents.Update(ctx, f.admin, f.incident.ID, service.IncidentPatch{Status: ptr("rejected")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, inc.Status)
	assert.Len(t, f.env.Outbox.Sent(), 1)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.env.Incidents.Create(ctx, f.stranger, service.IncidentInput{Title: "Other", Description: "d", Latitude: ptr(1.0), Longitude: ptr(1.0)})
	require.NoError(t, err)
	_, err = f.env.Incidents.UpdateStatus(ctx, f.admin, f.incident.ID, "investigating")
	require.NoError(t, err)

	all, err := f.env.Incidents.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.env.Incidents.ListMine(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.incident.ID, mine[0].ID)

	_, err = f.env.Incidents.AdminList(ctx, f.owner, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	investigating, err := f.env.Incidents.AdminList(ctx, f.admin, "investigating")
	require.NoError(t, err)
	assert.Len(t, investigating, 1)

	_, err = f.env.Incidents.AdminList(ctx, f.admin, "closed")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.env.Incidents.AddComment(ctx, f.stranger, f.incident.ID, service.CommentInput{Text: " me too "})
	require.NoError(t, err)
	assert.Equal(t, "me too", c.Text)
	assert.Equal(t, f.stranger.ID, c.CreatedBy)

	_, err = f.env.Incidents.AddComment(ctx, nil, f.incident.ID, service.CommentInput{Text: "anon"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = f.env.Incidents.AddComment(ctx, f.stranger, 9999, service.CommentInput{Text: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.env.Incidents.AddComment(ctx, f.stranger, f.incident.ID, service.CommentInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	list, err := f.env.Incidents.ListComments(ctx, f.incident.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMediaLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Incidents.AttachMedia(ctx, f.stranger, f.incident.ID, "x.png", strings.NewReader("img"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.env.Incidents.AttachMedia(ctx, f.owner, f.incident.ID, "x.exe", strings.NewReader("bin"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	m, err := f.env.Incidents.AttachMedia(ctx, f.owner, f.incident.ID, "Photo.JPG", strings.NewReader("img"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(m.Filename, ".jpg"))
	assert.True(t, f.env.Files.Has(m.Filename))

	assert.ErrorIs(t, f.env.Incidents.DeleteMedia(ctx, f.stranger, m.ID), apperr.ErrUnauthorized)
	require.NoError(t, f.env.Incidents.DeleteMedia(ctx, f.owner, m.ID))
	assert.False(t, f.env.Files.Has(m.Filename))
	assert.ErrorIs(t, f.env.Incidents.DeleteMedia(ctx, f.owner, m.ID), apperr.ErrNotFound)
}

func TestUploaderWithoutRoleCannotDeleteMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.env.Incidents.AttachMedia(ctx, f.admin, f.incident.ID, "scene.png", strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, m.UploadedBy)

	f.env.DB.Users().SetRole(f.admin.ID, model.RoleUser)
	demoted := &auth.Caller{ID: f.admin.ID, Role: model.RoleUser}
	assert.ErrorIs(t, f.env.Incidents.DeleteMedia(ctx, demoted, m.ID), apperr.ErrUnauthorized)
	assert.True(t, f.env.Files.Has(m.Filename))

	require.NoError(t, f.env.Incidents.DeleteMedia(ctx, f.owner, m.ID))
}

func TestDeleteIncidentCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.env.Incidents.AttachMedia(ctx, f.admin, f.incident.ID, "a.gif", strings.NewReader("gif"))
	require.NoError(t, err)
	_, err = f.env.Incidents.AddComment(ctx, f.stranger, f.incident.ID, service.CommentInput{Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, f.env.Incidents.Delete(ctx, f.owner, f.incident.ID))
	assert.False(t, f.env.Files.Has(m.Filename))
	_, err = f.env.Incidents.Get(ctx, f.incident.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.env.Incidents.ListComments(ctx, f.incident.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from    model.IncidentStatus
		to      string
		want    model.IncidentStatus
		wantErr bool
	}{
		{model.StatusPending, "investigating", model.StatusInvestigating, false},
		{model.StatusPending, "resolved", model.StatusResolved, false},
		{model.StatusInvestigating, "rejected", model.StatusRejected, false},
		{model.StatusResolved, "investigating", model.StatusInvestigating, false},
		{model.StatusInvestigating, "pending", model.StatusInvestigating, true},
		{model.StatusPending, "done", model.StatusPending, true},
	}
	for _, tt := range tests {
		got, err := service.NextStatus(tt.from, tt.to)
		if tt.wantErr {
			assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
		} else {
			assert.NoError(t, err)
		}
		assert.Equal(t, tt.want, got)
	}
}
