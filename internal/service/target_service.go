package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
)

type targetRepository interface {
	Create(ctx context.Context, target *models.Target) error
	FindByID(ctx context.Context, id string) (*models.Target, error)
	ListByMR(ctx context.Context, mrID string) ([]models.Target, error)
	UpdateStatus(ctx context.Context, id string, status models.TargetStatus) error
	Delete(ctx context.Context, id string) error
}

type achievementSource interface {
	CountVisitsInWindow(ctx context.Context, mrID string, from, to time.Time) (int, error)
	DeliveredOrdersInWindow(ctx context.Context, mrID string, from, to time.Time) (*models.OrderAchievementSummary, error)
}

type doctorAchievementSource interface {
	CountAddedSince(ctx context.Context, mrID string, from, to time.Time) (int, error)
}

const targetSequence = "target_code"

// CreateTargetRequest assigns a period-scoped quota to one rep.
type CreateTargetRequest struct {
	MRID       string            `json:"mr_id" validate:"required"`
	PeriodType models.PeriodType `json:"period_type" validate:"required,oneof=Monthly Quarterly Half-Yearly Yearly"`
	StartDate  time.Time         `json:"start_date" validate:"required"`
	EndDate    time.Time         `json:"end_date" validate:"required"`
	Month      *int              `json:"month" validate:"omitempty,min=1,max=12"`
	Quarter    *int              `json:"quarter" validate:"omitempty,min=1,max=4"`
	Year       int               `json:"year" validate:"required"`

	TotalVisits      int `json:"total_visits" validate:"gte=0"`
	NewDoctorVisits  int `json:"new_doctor_visits" validate:"gte=0"`
	FollowUpVisits   int `json:"follow_up_visits" validate:"gte=0"`
	DailyVisitTarget int `json:"daily_visit_target" validate:"gte=0"`

	TotalSalesValue   float64 `json:"total_sales_value" validate:"gte=0"`
	TotalOrders       int     `json:"total_orders" validate:"gte=0"`
	NewCustomerOrders int     `json:"new_customer_orders" validate:"gte=0"`

	DoctorCoveragePct    float64 `json:"doctor_coverage_pct" validate:"gte=0,lte=100"`
	MarketPenetrationPct float64 `json:"market_penetration_pct" validate:"gte=0,lte=100"`
	NewDoctorAcquisition int     `json:"new_doctor_acquisition" validate:"gte=0"`
}

// UpdateTargetStatusRequest moves an Active target to a terminal status.
type UpdateTargetStatusRequest struct {
	Status models.TargetStatus `json:"status" validate:"required,oneof=Completed Cancelled"`
}

// TargetService assigns quotas and derives achievements on read by
// scanning visits and orders inside the target window. Nothing is ever
// incremented on the write path.
type TargetService struct {
	repo      targetRepository
	visits    achievementSource
	doctors   doctorAchievementSource
	sequences codeSequence
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTargetService creates a TargetService instance.
func NewTargetService(repo targetRepository, visits achievementSource, doctors doctorAchievementSource, sequences codeSequence, validate *validator.Validate, logger *zap.Logger) *TargetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TargetService{repo: repo, visits: visits, doctors: doctors, sequences: sequences, validator: validate, logger: logger}
}

// Create assigns a new target. The caller becomes assigned_by and the
// code comes from the atomic sequence.
func (s *TargetService) Create(ctx context.Context, req CreateTargetRequest, assignedBy string) (*models.Target, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid target payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	code, err := s.sequences.NextCode(ctx, targetSequence, "TGT")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate target code")
	}

	target := &models.Target{
		TargetCode: code,
		MRID:       req.MRID,
		AssignedBy: assignedBy,
		PeriodType: req.PeriodType,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Month:      req.Month,
		Quarter:    req.Quarter,
		Year:       req.Year,
		Status:     models.TargetActive,

		TotalVisits:      req.TotalVisits,
		NewDoctorVisits:  req.NewDoctorVisits,
		FollowUpVisits:   req.FollowUpVisits,
		DailyVisitTarget: req.DailyVisitTarget,

		TotalSalesValue:   req.TotalSalesValue,
		TotalOrders:       req.TotalOrders,
		NewCustomerOrders: req.NewCustomerOrders,

		DoctorCoveragePct:    req.DoctorCoveragePct,
		MarketPenetrationPct: req.MarketPenetrationPct,
		NewDoctorAcquisition: req.NewDoctorAcquisition,
	}

	if err := s.repo.Create(ctx, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create target")
	}
	return target, nil
}

// ListForMR returns a rep's targets with freshly computed achievements.
// Reps may only query their own targets.
func (s *TargetService) ListForMR(ctx context.Context, mrID string, actor *models.JWTClaims) ([]models.TargetWithAchievement, error) {
	if actor != nil && actor.Role == models.RoleMR && actor.UserID != mrID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "targets belong to another representative")
	}

	targets, err := s.repo.ListByMR(ctx, mrID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list targets")
	}

	out := make([]models.TargetWithAchievement, 0, len(targets))
	for i := range targets {
		achievement, err := s.computeAchievement(ctx, &targets[i])
		if err != nil {
			return nil, err
		}
		out = append(out, models.TargetWithAchievement{Target: targets[i], Achievement: *achievement})
	}
	return out, nil
}

// UpdateStatus moves an Active target to Completed or Cancelled.
func (s *TargetService) UpdateStatus(ctx context.Context, id string, req UpdateTargetStatusRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid target status payload")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.repo.FindByID(ctx, id); lookupErr != nil {
				return appErrors.Clone(appErrors.ErrNotFound, "target not found")
			}
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("target is not active, cannot move to %s", req.Status))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update target status")
	}
	return nil
}

func (s *TargetService) computeAchievement(ctx context.Context, target *models.Target) (*models.TargetAchievement, error) {
	visits, err := s.visits.CountVisitsInWindow(ctx, target.MRID, target.StartDate, target.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count visits")
	}

	orders, err := s.visits.DeliveredOrdersInWindow(ctx, target.MRID, target.StartDate, target.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate orders")
	}
	if orders == nil {
		orders = &models.OrderAchievementSummary{}
	}

	newDoctors, err := s.doctors.CountAddedSince(ctx, target.MRID, target.StartDate, target.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count new doctors")
	}

	return &models.TargetAchievement{
		VisitsCompleted: visits,
		SalesAchieved:   orders.SalesValue,
		OrdersCompleted: orders.OrderCount,
		NewDoctorsAdded: newDoctors,
		VisitPct:        models.AchievementPct(float64(visits), float64(target.TotalVisits)),
		SalesPct:        models.AchievementPct(orders.SalesValue, target.TotalSalesValue),
		OrderPct:        models.AchievementPct(float64(orders.OrderCount), float64(target.TotalOrders)),
		LastUpdated:     time.Now().UTC(),
	}, nil
}
