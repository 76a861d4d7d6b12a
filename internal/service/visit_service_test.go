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

type mockVisitRepo struct {
	visits          map[string]*models.VisitReport
	created         *models.VisitReport
	order           *models.Order
	findOrderErr    error
	updateOrderErr  error
	replaceErr      error
	updateStatusErr error
	replacedOrders  []models.Order
}

func (m *mockVisitRepo) CreateWithOrders(ctx context.Context, visit *models.VisitReport) error {
	visit.ID = "visit-1"
	m.created = visit
	return nil
}

func (m *mockVisitRepo) FindByID(ctx context.Context, id string) (*models.VisitReport, error) {
	visit, ok := m.visits[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return visit, nil
}

func (m *mockVisitRepo) List(ctx context.Context, filter models.VisitFilter) ([]models.VisitReport, int, error) {
	var out []models.VisitReport
	for _, visit := range m.visits {
		if filter.MRID != "" && visit.MRID != filter.MRID {
			continue
		}
		out = append(out, *visit)
	}
	return out, len(out), nil
}

func (m *mockVisitRepo) FindOrder(ctx context.Context, visitID, orderID string) (*models.Order, error) {
	if m.findOrderErr != nil {
		return nil, m.findOrderErr
	}
	return m.order, nil
}

func (m *mockVisitRepo) UpdateOrderStatus(ctx context.Context, visitID, orderID string, from, to models.OrderStatus) error {
	return m.updateOrderErr
}

func (m *mockVisitRepo) ReplaceOrderStatuses(ctx context.Context, visitID string, orders []models.Order) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replacedOrders = orders
	return nil
}

func (m *mockVisitRepo) UpdateStatus(ctx context.Context, id string, status models.VisitStatus) error {
	return m.updateStatusErr
}

type mockDoctorLookup struct {
	err error
}

func (m *mockDoctorLookup) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Doctor{ID: id}, nil
}

type mockProductLookup struct {
	products []models.Product
	err      error
}

func (m *mockProductLookup) FindByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

type mockCacheRepo struct {
	patterns []string
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func newVisitService(repo *mockVisitRepo, doctors *mockDoctorLookup, products *mockProductLookup) *VisitService {
	return NewVisitService(repo, doctors, products, validator.New(), nil, zap.NewNop())
}

func TestVisitServiceCreateSnapshotsPrice(t *testing.T) {
	repo := &mockVisitRepo{}
	products := &mockProductLookup{products: []models.Product{
		{ID: "p1", Name: "Amoxicillin", MRP: 100},
		{ID: "p2", Name: "Cetirizine", MRP: 45.5},
	}}
	svc := newVisitService(repo, &mockDoctorLookup{}, products)

	visit, err := svc.Create(context.Background(), "mr-1", CreateVisitRequest{
		DoctorID:          "doc-1",
		Notes:             "introduced the new antibiotic line",
		ProductsDiscussed: []string{"p1", "p2"},
		Orders:            []OrderLineRequest{{ProductID: "p1", Quantity: 3}},
	})
	require.NoError(t, err)

	require.Len(t, visit.Orders, 1)
	order := visit.Orders[0]
	assert.Equal(t, 100.0, order.UnitPrice)
	assert.Equal(t, 300.0, order.TotalAmount)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.VisitSubmitted, visit.Status)
	assert.Equal(t, "mr-1", visit.MRID)
	assert.Len(t, visit.ProductsDiscussed, 2)
	assert.False(t, visit.VisitDate.IsZero())
}

func TestVisitServiceCreateUnknownProduct(t *testing.T) {
	repo := &mockVisitRepo{}
	products := &mockProductLookup{products: []models.Product{{ID: "p1", MRP: 10}}}
	svc := newVisitService(repo, &mockDoctorLookup{}, products)

	_, err := svc.Create(context.Background(), "mr-1", CreateVisitRequest{
		DoctorID: "doc-1",
		Notes:    "notes",
		Orders:   []OrderLineRequest{{ProductID: "missing", Quantity: 1}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestVisitServiceCreateMissingDoctor(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, &mockDoctorLookup{err: sql.ErrNoRows}, &mockProductLookup{})

	_, err := svc.Create(context.Background(), "mr-1", CreateVisitRequest{DoctorID: "doc-x", Notes: "notes"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestVisitServiceGetEnforcesOwnership(t *testing.T) {
	repo := &mockVisitRepo{visits: map[string]*models.VisitReport{
		"visit-1": {ID: "visit-1", MRID: "mr-1"},
	}}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	_, err := svc.Get(context.Background(), "visit-1", &models.JWTClaims{UserID: "mr-2", Role: models.RoleMR})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	visit, err := svc.Get(context.Background(), "visit-1", &models.JWTClaims{UserID: "mr-1", Role: models.RoleMR})
	require.NoError(t, err)
	assert.Equal(t, "visit-1", visit.ID)
}

func TestVisitServiceListForcesOwnFilter(t *testing.T) {
	repo := &mockVisitRepo{visits: map[string]*models.VisitReport{
		"v1": {ID: "v1", MRID: "mr-1"},
		"v2": {ID: "v2", MRID: "mr-2"},
	}}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	visits, pagination, err := svc.List(context.Background(), models.VisitFilter{MRID: "mr-2"}, &models.JWTClaims{UserID: "mr-1", Role: models.RoleMR})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "mr-1", visits[0].MRID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestVisitServiceUpdateOrderStatusLegalMove(t *testing.T) {
	repo := &mockVisitRepo{order: &models.Order{ID: "o1", VisitID: "v1", Status: models.OrderPending}}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	order, err := svc.UpdateOrderStatus(context.Background(), "v1", "o1", UpdateOrderStatusRequest{Status: models.OrderConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, order.Status)
}

func TestVisitServiceUpdateOrderStatusIllegalMove(t *testing.T) {
	repo := &mockVisitRepo{order: &models.Order{ID: "o1", VisitID: "v1", Status: models.OrderPending}}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	_, err := svc.UpdateOrderStatus(context.Background(), "v1", "o1", UpdateOrderStatusRequest{Status: models.OrderDelivered})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestVisitServiceUpdateOrderStatusConcurrentLoss(t *testing.T) {
	repo := &mockVisitRepo{
		order:          &models.Order{ID: "o1", VisitID: "v1", Status: models.OrderPending},
		updateOrderErr: sql.ErrNoRows,
	}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	_, err := svc.UpdateOrderStatus(context.Background(), "v1", "o1", UpdateOrderStatusRequest{Status: models.OrderConfirmed})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestVisitServiceReplaceOrderStatuses(t *testing.T) {
	visit := &models.VisitReport{
		ID:   "v1",
		MRID: "mr-1",
		Orders: []models.Order{
			{ID: "o1", Status: models.OrderPending},
			{ID: "o2", Status: models.OrderConfirmed},
		},
	}
	repo := &mockVisitRepo{visits: map[string]*models.VisitReport{"v1": visit}}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	_, err := svc.ReplaceOrderStatuses(context.Background(), "v1", ReplaceOrdersRequest{Orders: []OrderStatusItem{
		{ID: "o1", Status: models.OrderConfirmed},
		{ID: "o2", Status: models.OrderConfirmed}, // unchanged is fine
	}})
	require.NoError(t, err)
	require.Len(t, repo.replacedOrders, 2)
}

func TestVisitServiceReplaceRejectsIllegalPair(t *testing.T) {
	visit := &models.VisitReport{
		ID:     "v1",
		Orders: []models.Order{{ID: "o1", Status: models.OrderDelivered}},
	}
	repo := &mockVisitRepo{visits: map[string]*models.VisitReport{"v1": visit}}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	_, err := svc.ReplaceOrderStatuses(context.Background(), "v1", ReplaceOrdersRequest{Orders: []OrderStatusItem{
		{ID: "o1", Status: models.OrderPending},
	}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
	assert.Nil(t, repo.replacedOrders)
}

func TestVisitServiceReplaceRejectsForeignOrder(t *testing.T) {
	visit := &models.VisitReport{ID: "v1", Orders: []models.Order{{ID: "o1", Status: models.OrderPending}}}
	repo := &mockVisitRepo{visits: map[string]*models.VisitReport{"v1": visit}}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	_, err := svc.ReplaceOrderStatuses(context.Background(), "v1", ReplaceOrdersRequest{Orders: []OrderStatusItem{
		{ID: "other", Status: models.OrderConfirmed},
	}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestVisitServiceUpdateVisitStatusUnknown(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, &mockDoctorLookup{}, &mockProductLookup{})

	err := svc.UpdateVisitStatus(context.Background(), "v1", UpdateVisitStatusRequest{Status: "Archived"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestVisitServiceCreateDedupesDiscussedProducts(t *testing.T) {
	repo := &mockVisitRepo{}
	products := &mockProductLookup{products: []models.Product{{ID: "p1", Name: "Amoxicillin", MRP: 100}}}
	svc := newVisitService(repo, &mockDoctorLookup{}, products)

	visit, err := svc.Create(context.Background(), "mr-1", CreateVisitRequest{
		DoctorID:          "doc-1",
		Notes:             "follow-up call",
		ProductsDiscussed: []string{"p1", "p1"},
	})
	require.NoError(t, err)

	require.Len(t, visit.ProductsDiscussed, 1)
	assert.Equal(t, "p1", visit.ProductsDiscussed[0].ID)
	require.Len(t, repo.created.ProductsDiscussed, 1)
}

func TestVisitServiceOrderWriteInvalidatesDashboards(t *testing.T) {
	repo := &mockVisitRepo{order: &models.Order{ID: "o1", VisitID: "v1", Status: models.OrderPending}}
	cacheRepo := &mockCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{}, validator.New(), cacheSvc, zap.NewNop())

	_, err := svc.UpdateOrderStatus(context.Background(), "v1", "o1", UpdateOrderStatusRequest{Status: models.OrderConfirmed})
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.patterns, "dashboard:*")
}

func TestVisitServiceCreateDefaultsVisitDate(t *testing.T) {
	repo := &mockVisitRepo{}
	svc := newVisitService(repo, &mockDoctorLookup{}, &mockProductLookup{})

	before := time.Now().UTC()
	visit, err := svc.Create(context.Background(), "mr-1", CreateVisitRequest{DoctorID: "doc-1", Notes: "quick call"})
	require.NoError(t, err)
	assert.False(t, visit.VisitDate.Before(before))
}
