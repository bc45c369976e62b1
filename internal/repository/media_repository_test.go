package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

func TestMediaCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO media").
		WithArgs("x.png", "/uploads/x.png", uint64(1), uint64(2)).
		WillReturnResult(sqlmock.NewResult(9, 1))
	m := &model.Media{Filename: "x.png", FileURL: "/uploads/x.png", IncidentID: 1, UploadedBy: 2}
	require.NoError(t, NewMediaRepo(db).Create(context.Background(), m))
	assert.Equal(t, uint64(9), m.ID)
}

func TestMediaDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM media").WithArgs(uint64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	err = NewMediaRepo(db).Delete(context.Background(), 9)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMediaGetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM media WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "file_url", "incident_id", "uploaded_by", "created_at", "updated_at"}))
	_, err = NewMediaRepo(db).GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
