package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
)

type doctorRepository interface {
	Create(ctx context.Context, doctor *models.Doctor) error
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	Update(ctx context.Context, doctor *models.Doctor) error
	Delete(ctx context.Context, id string) error
}

// DoctorRequest is the create/update payload for a doctor record.
type DoctorRequest struct {
	FullName       string `json:"full_name" validate:"required"`
	Qualification  string `json:"qualification"`
	Specialization string `json:"specialization"`
	Place          string `json:"place"`
	Phone          string `json:"phone"`
	Email          string `json:"email" validate:"omitempty,email"`
}

// DoctorService handles doctor roster workflows. Reps manage their own
// roster; admin-created doctors stay on the shared roster visible to all.
type DoctorService struct {
	repo      doctorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDoctorService creates a DoctorService instance.
func NewDoctorService(repo doctorRepository, validate *validator.Validate, logger *zap.Logger) *DoctorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DoctorService{repo: repo, validator: validate, logger: logger}
}

// Create adds a doctor. When the actor is a rep the record lands on
// their personal roster; admin creations stay shared.
func (s *DoctorService) Create(ctx context.Context, req DoctorRequest, actor *models.JWTClaims) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	doctor := &models.Doctor{
		FullName:       req.FullName,
		Qualification:  req.Qualification,
		Specialization: req.Specialization,
		Place:          req.Place,
		Phone:          req.Phone,
		Email:          req.Email,
	}
	if actor != nil && actor.Role == models.RoleMR {
		doctor.AssignedMR = &actor.UserID
	}

	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create doctor")
	}
	return doctor, nil
}

// Get returns one doctor visible to the actor.
func (s *DoctorService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Doctor, error) {
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	if !visibleTo(doctor, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "doctor belongs to another representative")
	}
	return doctor, nil
}

// List returns doctors visible to the actor. Reps see their own roster
// plus shared doctors; admins see everything.
func (s *DoctorService) List(ctx context.Context, filter models.DoctorFilter, actor *models.JWTClaims) ([]models.Doctor, *models.Pagination, error) {
	if actor != nil && actor.Role == models.RoleMR {
		filter.AssignedMR = &actor.UserID
		filter.IncludeShared = true
	}

	doctors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list doctors")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return doctors, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update modifies a doctor record the actor is allowed to manage.
func (s *DoctorService) Update(ctx context.Context, id string, req DoctorRequest, actor *models.JWTClaims) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	if !canManage(doctor, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "doctor belongs to another representative")
	}

	doctor.FullName = req.FullName
	doctor.Qualification = req.Qualification
	doctor.Specialization = req.Specialization
	doctor.Place = req.Place
	doctor.Phone = req.Phone
	doctor.Email = req.Email

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update doctor")
	}
	return doctor, nil
}

// Delete removes a doctor record the actor is allowed to manage.
func (s *DoctorService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	if !canManage(doctor, actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "doctor belongs to another representative")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete doctor")
	}
	return nil
}

func visibleTo(doctor *models.Doctor, actor *models.JWTClaims) bool {
	if actor == nil || actor.Role == models.RoleAdmin {
		return true
	}
	return doctor.AssignedMR == nil || *doctor.AssignedMR == actor.UserID
}

func canManage(doctor *models.Doctor, actor *models.JWTClaims) bool {
	if actor == nil || actor.Role == models.RoleAdmin {
		return true
	}
	return doctor.AssignedMR != nil && *doctor.AssignedMR == actor.UserID
}
