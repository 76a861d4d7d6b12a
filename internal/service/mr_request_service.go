package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/repository"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/mailer"
)

type mrRequestRepository interface {
	Create(ctx context.Context, req *models.MRRequest) error
	FindByID(ctx context.Context, id string) (*models.MRRequest, error)
	List(ctx context.Context, filter models.MRRequestFilter) ([]models.MRRequest, int, error)
	Approve(ctx context.Context, requestID string, user *models.User, processedAt time.Time) error
	Reject(ctx context.Context, requestID string, reason *string, processedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type mrRequestUserLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// SubmitMRRequest is the public application payload.
type SubmitMRRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,len=10,numeric"`
	Area       string `json:"area" validate:"required"`
	Experience string `json:"experience"`
}

// RejectMRRequest carries an optional rejection reason.
type RejectMRRequest struct {
	Reason *string `json:"reason"`
}

const tempPasswordCharset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// MRRequestService drives the portal-access application workflow.
type MRRequestService struct {
	repo      mrRequestRepository
	users     mrRequestUserLookup
	mail      mailer.Sender
	validator *validator.Validate
	cache     *CacheService
	logger    *zap.Logger
}

// NewMRRequestService constructs an MRRequestService.
func NewMRRequestService(repo mrRequestRepository, users mrRequestUserLookup, mail mailer.Sender, validate *validator.Validate, cache *CacheService, logger *zap.Logger) *MRRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if mail == nil {
		mail = mailer.NopSender{}
	}
	return &MRRequestService{repo: repo, users: users, mail: mail, validator: validate, cache: cache, logger: logger}
}

// Submit records a new pending application from the public form.
func (s *MRRequestService) Submit(ctx context.Context, req SubmitMRRequest) (*models.MRRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	request := &models.MRRequest{
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Area:       req.Area,
		Experience: req.Experience,
		Status:     models.MRRequestPending,
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record application")
	}
	s.cache.Invalidate(ctx, "dashboard:*")

	body := fmt.Sprintf("Hello %s,\n\nWe received your application for field access. You will be notified once it has been reviewed.\n", request.FullName)
	mailer.SendAsync(s.mail, s.logger, request.Email, "Application received", body)

	return request, nil
}

// Get returns one application by ID.
func (s *MRRequestService) Get(ctx context.Context, id string) (*models.MRRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return request, nil
}

// List returns applications matching the filter with pagination metadata.
func (s *MRRequestService) List(ctx context.Context, filter models.MRRequestFilter) ([]models.MRRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Approve creates an MR account from a pending application and returns
// the temporary credentials exactly once. The account insert and the
// status flip commit atomically; a concurrent approval or rejection
// wins the race and this call reports a conflict. The credential email
// goes out after commit and never affects the outcome.
func (s *MRRequestService) Approve(ctx context.Context, requestID string) (*models.ApprovedCredentials, error) {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	if !request.Pending() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application already processed")
	}

	if _, err := s.users.FindByEmail(ctx, request.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	tempPassword, err := generateTempPassword(12)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate temporary password")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash temporary password")
	}

	user := &models.User{
		Email:        request.Email,
		PasswordHash: string(passwordHash),
		FullName:     request.FullName,
		Role:         models.RoleMR,
		Territory:    request.Area,
		Phone:        request.Phone,
		FirstLogin:   true,
		Active:       true,
	}

	if err := s.repo.Approve(ctx, requestID, user, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "application already processed")
		}
		// The pre-check above races with concurrent account creation;
		// the constraint inside the transaction is the authority.
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve application")
	}
	s.cache.Invalidate(ctx, "dashboard:*")

	body := fmt.Sprintf("Hello %s,\n\nYour field access has been approved.\n\nLogin: %s\nTemporary password: %s\n\nYou will be asked to change this password on first login.\n", request.FullName, request.Email, tempPassword)
	mailer.SendAsync(s.mail, s.logger, request.Email, "Your portal access is approved", body)

	return &models.ApprovedCredentials{
		Email:        request.Email,
		TempPassword: tempPassword,
		UserID:       user.ID,
	}, nil
}

// Reject marks a pending application as rejected and notifies the
// applicant out-of-band.
func (s *MRRequestService) Reject(ctx context.Context, requestID string, req RejectMRRequest) error {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	if err := s.repo.Reject(ctx, requestID, req.Reason, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "application already processed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
	}
	s.cache.Invalidate(ctx, "dashboard:*")

	body := fmt.Sprintf("Hello %s,\n\nYour application for field access was not approved at this time.\n", request.FullName)
	mailer.SendAsync(s.mail, s.logger, request.Email, "Application update", body)

	return nil
}

// Delete removes a processed application from the queue. Pending
// applications must be approved or rejected first.
func (s *MRRequestService) Delete(ctx context.Context, requestID string) error {
	if err := s.repo.Delete(ctx, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			request, lookupErr := s.repo.FindByID(ctx, requestID)
			if lookupErr == nil && request.Pending() {
				return appErrors.Clone(appErrors.ErrInvalidState, "pending applications cannot be deleted")
			}
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete application")
	}
	return nil
}

func generateTempPassword(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(tempPasswordCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = tempPasswordCharset[n.Int64()]
	}
	return string(buf), nil
}
