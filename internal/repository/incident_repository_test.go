package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

var incidentCols = []string{"id", "title", "description", "latitude", "longitude", "status", "created_by", "created_at", "updated_at"}

func newIncidentRepo(t *testing.T) (*IncidentRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewIncidentRepo(db), mock
}

func TestIncidentCreateForcesPending(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	mock.ExpectExec("INSERT INTO incidents").
		WithArgs("Pothole", "Deep", 1.5, 2.5, "pending", uint64(4)).
		WillReturnResult(sqlmock.NewResult(11, 1))

	inc := &model.Incident{Title: "Pothole", Description: "Deep", Latitude: 1.5, Longitude: 2.5, Status: model.StatusResolved, CreatedBy: 4}
	require.NoError(t, repo.Create(context.Background(), inc))
	assert.Equal(t, uint64(11), inc.ID)
	assert.Equal(t, model.StatusPending, inc.Status)
}

func TestIncidentCreateUnknownReporter(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	mock.ExpectExec("INSERT INTO incidents").WillReturnError(&mysql.MySQLError{Number: 1452})

	err := repo.Create(context.Background(), &model.Incident{Title: "t", CreatedBy: 9})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIncidentListFilters(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM incidents WHERE status = ? AND created_by = ? ORDER BY id DESC")).
		WithArgs("investigating", uint64(2)).
		WillReturnRows(sqlmock.NewRows(incidentCols).AddRow(1, "a", "b", 0.0, 0.0, "investigating", 2, now, now))

	items, err := repo.List(context.Background(), model.IncidentFilter{Status: model.StatusInvestigating, CreatedBy: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.StatusInvestigating, items[0].Status)
}

func TestIncidentListEmptyIsNonNil(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + incidentColumns + " FROM incidents ORDER BY id DESC")).
		WillReturnRows(sqlmock.NewRows(incidentCols))

	items, err := repo.List(context.Background(), model.IncidentFilter{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestIncidentUpdateKeepsOwner(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM incidents WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(incidentCols).AddRow(3, "old", "d", 1.0, 1.0, "pending", 8, now, now))
	mock.ExpectExec("UPDATE incidents SET").
		WithArgs("new", "d", 1.0, 1.0, "pending", sqlmock.AnyArg(), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Update(context.Background(), 3, func(inc *model.Incident) error {
		inc.Title = "new"
		inc.CreatedBy = 1
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, uint64(8), got.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentUpdateAbortLeavesRow(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(incidentCols).AddRow(3, "old", "d", 1.0, 1.0, "pending", 8, now, now))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), 3, func(*model.Incident) error { return apperr.ErrInvalidStatus })
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentUpdateMissing(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(incidentCols))
	mock.ExpectRollback()

	called := false
	_, err := repo.Update(context.Background(), 3, func(*model.Incident) error { called = true; return nil })
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, called)
}

func TestIncidentDeleteCascades(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(incidentCols).AddRow(3, "t", "d", 0.0, 0.0, "pending", 8, now, now))
	mock.ExpectQuery("FROM media WHERE incident_id").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "file_url", "incident_id", "uploaded_by", "created_at", "updated_at"}).
			AddRow(1, "a.png", "/uploads/a.png", 3, 8, now, now))
	mock.ExpectExec("DELETE FROM comments").WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM media").WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM incidents").WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	media, err := repo.Delete(context.Background(), 3, func(model.Incident) error { return nil })
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "a.png", media[0].Filename)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentDeleteRefused(t *testing.T) {
	repo, mock := newIncidentRepo(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(incidentCols).AddRow(3, "t", "d", 0.0, 0.0, "pending", 8, now, now))
	mock.ExpectRollback()

	denied := errors.New("denied")
	_, err := repo.Delete(context.Background(), 3, func(model.Incident) error { return denied })
	assert.ErrorIs(t, err, denied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
