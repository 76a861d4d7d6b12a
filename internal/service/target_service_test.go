package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
)

type mockTargetRepo struct {
	targets         map[string]*models.Target
	byMR            []models.Target
	created         *models.Target
	updateStatusErr error
}

func (m *mockTargetRepo) Create(ctx context.Context, target *models.Target) error {
	target.ID = "target-1"
	m.created = target
	return nil
}

func (m *mockTargetRepo) FindByID(ctx context.Context, id string) (*models.Target, error) {
	target, ok := m.targets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return target, nil
}

func (m *mockTargetRepo) ListByMR(ctx context.Context, mrID string) ([]models.Target, error) {
	return m.byMR, nil
}

func (m *mockTargetRepo) UpdateStatus(ctx context.Context, id string, status models.TargetStatus) error {
	return m.updateStatusErr
}

func (m *mockTargetRepo) Delete(ctx context.Context, id string) error {
	return nil
}

type mockAchievementSource struct {
	visits     int
	orderCount int
	salesValue float64
}

func (m *mockAchievementSource) CountVisitsInWindow(ctx context.Context, mrID string, from, to time.Time) (int, error) {
	return m.visits, nil
}

func (m *mockAchievementSource) DeliveredOrdersInWindow(ctx context.Context, mrID string, from, to time.Time) (*models.OrderAchievementSummary, error) {
	return &models.OrderAchievementSummary{OrderCount: m.orderCount, SalesValue: m.salesValue}, nil
}

type mockDoctorAchievementSource struct {
	added int
}

func (m *mockDoctorAchievementSource) CountAddedSince(ctx context.Context, mrID string, from, to time.Time) (int, error) {
	return m.added, nil
}

func newTargetService(repo *mockTargetRepo, visits *mockAchievementSource, doctors *mockDoctorAchievementSource) *TargetService {
	return NewTargetService(repo, visits, doctors, &mockSequence{}, validator.New(), zap.NewNop())
}

func TestTargetServiceCreate(t *testing.T) {
	repo := &mockTargetRepo{}
	svc := newTargetService(repo, &mockAchievementSource{}, &mockDoctorAchievementSource{})

	month := 3
	target, err := svc.Create(context.Background(), CreateTargetRequest{
		MRID:        "mr-1",
		PeriodType:  models.PeriodMonthly,
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Month:       &month,
		Year:        2026,
		TotalVisits: 40,
	}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "TGT0001", target.TargetCode)
	assert.Equal(t, "admin-1", target.AssignedBy)
	assert.Equal(t, models.TargetActive, target.Status)
}

func TestTargetServiceCreateRejectsInvertedWindow(t *testing.T) {
	svc := newTargetService(&mockTargetRepo{}, &mockAchievementSource{}, &mockDoctorAchievementSource{})

	_, err := svc.Create(context.Background(), CreateTargetRequest{
		MRID:       "mr-1",
		PeriodType: models.PeriodMonthly,
		StartDate:  time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Year:       2026,
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTargetServiceListForMRComputesAchievements(t *testing.T) {
	repo := &mockTargetRepo{byMR: []models.Target{{
		ID:              "target-1",
		MRID:            "mr-1",
		TotalVisits:     40,
		TotalSalesValue: 10000,
		TotalOrders:     20,
	}}}
	visits := &mockAchievementSource{visits: 10, orderCount: 5, salesValue: 2500}
	svc := newTargetService(repo, visits, &mockDoctorAchievementSource{added: 2})

	out, err := svc.ListForMR(context.Background(), "mr-1", &models.JWTClaims{UserID: "mr-1", Role: models.RoleMR})
	require.NoError(t, err)
	require.Len(t, out, 1)

	achievement := out[0].Achievement
	assert.Equal(t, 10, achievement.VisitsCompleted)
	assert.Equal(t, 5, achievement.OrdersCompleted)
	assert.Equal(t, 2500.0, achievement.SalesAchieved)
	assert.Equal(t, 2, achievement.NewDoctorsAdded)
	assert.InDelta(t, 25.0, achievement.VisitPct, 0.001)
	assert.InDelta(t, 25.0, achievement.SalesPct, 0.001)
	assert.InDelta(t, 25.0, achievement.OrderPct, 0.001)
}

func TestTargetServiceListForMRZeroQuota(t *testing.T) {
	repo := &mockTargetRepo{byMR: []models.Target{{ID: "target-1", MRID: "mr-1"}}}
	visits := &mockAchievementSource{visits: 7, orderCount: 3, salesValue: 900}
	svc := newTargetService(repo, visits, &mockDoctorAchievementSource{})

	out, err := svc.ListForMR(context.Background(), "mr-1", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	achievement := out[0].Achievement
	assert.Zero(t, achievement.VisitPct)
	assert.Zero(t, achievement.SalesPct)
	assert.Zero(t, achievement.OrderPct)
}

func TestTargetServiceListForMRForbidsOtherRep(t *testing.T) {
	svc := newTargetService(&mockTargetRepo{}, &mockAchievementSource{}, &mockDoctorAchievementSource{})

	_, err := svc.ListForMR(context.Background(), "mr-2", &models.JWTClaims{UserID: "mr-1", Role: models.RoleMR})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTargetServiceUpdateStatusNotActive(t *testing.T) {
	repo := &mockTargetRepo{
		targets:         map[string]*models.Target{"target-1": {ID: "target-1", Status: models.TargetCompleted}},
		updateStatusErr: sql.ErrNoRows,
	}
	svc := newTargetService(repo, &mockAchievementSource{}, &mockDoctorAchievementSource{})

	err := svc.UpdateStatus(context.Background(), "target-1", UpdateTargetStatusRequest{Status: models.TargetCancelled})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestTargetServiceUpdateStatusMissing(t *testing.T) {
	repo := &mockTargetRepo{updateStatusErr: sql.ErrNoRows}
	svc := newTargetService(repo, &mockAchievementSource{}, &mockDoctorAchievementSource{})

	err := svc.UpdateStatus(context.Background(), "nope", UpdateTargetStatusRequest{Status: models.TargetCompleted})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTargetServiceUpdateStatusRejectsActive(t *testing.T) {
	svc := newTargetService(&mockTargetRepo{}, &mockAchievementSource{}, &mockDoctorAchievementSource{})

	err := svc.UpdateStatus(context.Background(), "target-1", UpdateTargetStatusRequest{Status: models.TargetActive})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
