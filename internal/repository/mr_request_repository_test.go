package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldmed/medrep-api/internal/models"
)

func TestMRRequestApproveMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMRRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
	mock.ExpectRollback()

	user := &models.User{Email: "taken@example.com", FullName: "Priya Nair", Role: models.RoleMR}
	err := repo.Approve(context.Background(), "req-1", user, time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMRRequestApproveGuardLosesRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMRRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE mr_requests SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	user := &models.User{Email: "priya@example.com", FullName: "Priya Nair", Role: models.RoleMR}
	err := repo.Approve(context.Background(), "req-1", user, time.Now().UTC())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
