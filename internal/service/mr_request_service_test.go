package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/repository"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
)

type mockMRRequestRepo struct {
	requests     map[string]*models.MRRequest
	created      *models.MRRequest
	approvedUser *models.User
	approveErr   error
	rejectErr    error
	deleteErr    error
}

func (m *mockMRRequestRepo) Create(ctx context.Context, req *models.MRRequest) error {
	req.ID = "req-1"
	m.created = req
	return nil
}

func (m *mockMRRequestRepo) FindByID(ctx context.Context, id string) (*models.MRRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return req, nil
}

func (m *mockMRRequestRepo) List(ctx context.Context, filter models.MRRequestFilter) ([]models.MRRequest, int, error) {
	var out []models.MRRequest
	for _, req := range m.requests {
		out = append(out, *req)
	}
	return out, len(out), nil
}

func (m *mockMRRequestRepo) Approve(ctx context.Context, requestID string, user *models.User, processedAt time.Time) error {
	if m.approveErr != nil {
		return m.approveErr
	}
	user.ID = "user-1"
	m.approvedUser = user
	return nil
}

func (m *mockMRRequestRepo) Reject(ctx context.Context, requestID string, reason *string, processedAt time.Time) error {
	return m.rejectErr
}

func (m *mockMRRequestRepo) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

type mockUserLookup struct {
	user *models.User
}

func (m *mockUserLookup) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func newMRRequestService(repo *mockMRRequestRepo, users *mockUserLookup) *MRRequestService {
	return NewMRRequestService(repo, users, nil, validator.New(), nil, zap.NewNop())
}

func pendingRequest() *models.MRRequest {
	return &models.MRRequest{
		ID:       "req-1",
		FullName: "Priya Nair",
		Email:    "priya@example.com",
		Phone:    "9876543210",
		Area:     "Kochi",
		Status:   models.MRRequestPending,
	}
}

func TestMRRequestServiceSubmit(t *testing.T) {
	repo := &mockMRRequestRepo{}
	svc := newMRRequestService(repo, &mockUserLookup{})

	req, err := svc.Submit(context.Background(), SubmitMRRequest{
		FullName: "Priya Nair",
		Email:    "priya@example.com",
		Phone:    "9876543210",
		Area:     "Kochi",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MRRequestPending, req.Status)
	assert.Equal(t, "req-1", repo.created.ID)
}

func TestMRRequestServiceSubmitRejectsBadPhone(t *testing.T) {
	svc := newMRRequestService(&mockMRRequestRepo{}, &mockUserLookup{})

	_, err := svc.Submit(context.Background(), SubmitMRRequest{
		FullName: "Priya Nair",
		Email:    "priya@example.com",
		Phone:    "12345",
		Area:     "Kochi",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMRRequestServiceApproveProvisionsAccount(t *testing.T) {
	repo := &mockMRRequestRepo{requests: map[string]*models.MRRequest{"req-1": pendingRequest()}}
	svc := newMRRequestService(repo, &mockUserLookup{})

	creds, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)

	assert.Equal(t, "priya@example.com", creds.Email)
	assert.Equal(t, "user-1", creds.UserID)
	assert.Len(t, creds.TempPassword, 12)
	for _, ch := range creds.TempPassword {
		assert.Contains(t, tempPasswordCharset, string(ch))
	}

	user := repo.approvedUser
	require.NotNil(t, user)
	assert.Equal(t, models.RoleMR, user.Role)
	assert.Equal(t, "Kochi", user.Territory)
	assert.True(t, user.FirstLogin)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.TempPassword)))
}

func TestMRRequestServiceApproveAlreadyProcessed(t *testing.T) {
	request := pendingRequest()
	request.Status = models.MRRequestApproved
	repo := &mockMRRequestRepo{requests: map[string]*models.MRRequest{"req-1": request}}
	svc := newMRRequestService(repo, &mockUserLookup{})

	_, err := svc.Approve(context.Background(), "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestMRRequestServiceApproveLosesRace(t *testing.T) {
	repo := &mockMRRequestRepo{
		requests:   map[string]*models.MRRequest{"req-1": pendingRequest()},
		approveErr: sql.ErrNoRows,
	}
	svc := newMRRequestService(repo, &mockUserLookup{})

	_, err := svc.Approve(context.Background(), "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestMRRequestServiceApproveDuplicateEmail(t *testing.T) {
	repo := &mockMRRequestRepo{requests: map[string]*models.MRRequest{"req-1": pendingRequest()}}
	users := &mockUserLookup{user: &models.User{Email: "priya@example.com"}}
	svc := newMRRequestService(repo, users)

	_, err := svc.Approve(context.Background(), "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.approvedUser)
}

func TestMRRequestServiceApproveLosesEmailRace(t *testing.T) {
	// The pre-check saw no account, but another writer inserted one
	// before the transaction committed.
	repo := &mockMRRequestRepo{
		requests:   map[string]*models.MRRequest{"req-1": pendingRequest()},
		approveErr: repository.ErrUniqueViolation,
	}
	svc := newMRRequestService(repo, &mockUserLookup{})

	_, err := svc.Approve(context.Background(), "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMRRequestServiceApproveInvalidatesDashboards(t *testing.T) {
	repo := &mockMRRequestRepo{requests: map[string]*models.MRRequest{"req-1": pendingRequest()}}
	cacheRepo := &mockCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewMRRequestService(repo, &mockUserLookup{}, nil, validator.New(), cacheSvc, zap.NewNop())

	_, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.patterns, "dashboard:*")
}

func TestMRRequestServiceRejectProcessed(t *testing.T) {
	repo := &mockMRRequestRepo{
		requests:  map[string]*models.MRRequest{"req-1": pendingRequest()},
		rejectErr: sql.ErrNoRows,
	}
	svc := newMRRequestService(repo, &mockUserLookup{})

	err := svc.Reject(context.Background(), "req-1", RejectMRRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestMRRequestServiceDeletePendingBlocked(t *testing.T) {
	repo := &mockMRRequestRepo{
		requests:  map[string]*models.MRRequest{"req-1": pendingRequest()},
		deleteErr: sql.ErrNoRows,
	}
	svc := newMRRequestService(repo, &mockUserLookup{})

	err := svc.Delete(context.Background(), "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestMRRequestServiceDeleteMissing(t *testing.T) {
	repo := &mockMRRequestRepo{deleteErr: sql.ErrNoRows}
	svc := newMRRequestService(repo, &mockUserLookup{})

	err := svc.Delete(context.Background(), "req-x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGenerateTempPasswordUsesSafeCharset(t *testing.T) {
	password, err := generateTempPassword(12)
	require.NoError(t, err)
	assert.Len(t, password, 12)
	assert.NotContains(t, password, "0")
	assert.NotContains(t, password, "O")
	assert.NotContains(t, password, "l")
	assert.NotContains(t, password, "1")
	for _, ch := range password {
		assert.True(t, strings.ContainsRune(tempPasswordCharset, ch))
	}
}
