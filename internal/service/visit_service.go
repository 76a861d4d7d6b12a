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

type visitRepository interface {
	CreateWithOrders(ctx context.Context, visit *models.VisitReport) error
	FindByID(ctx context.Context, id string) (*models.VisitReport, error)
	List(ctx context.Context, filter models.VisitFilter) ([]models.VisitReport, int, error)
	FindOrder(ctx context.Context, visitID, orderID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, visitID, orderID string, from, to models.OrderStatus) error
	ReplaceOrderStatuses(ctx context.Context, visitID string, orders []models.Order) error
	UpdateStatus(ctx context.Context, id string, status models.VisitStatus) error
}

type visitDoctorLookup interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

type visitProductLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// OrderLineRequest is one order inside a visit submission.
type OrderLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CreateVisitRequest is the visit submission payload.
type CreateVisitRequest struct {
	DoctorID          string             `json:"doctor_id" validate:"required"`
	VisitDate         time.Time          `json:"visit_date"`
	Notes             string             `json:"notes" validate:"required"`
	ProductsDiscussed []string           `json:"products_discussed"`
	Orders            []OrderLineRequest `json:"orders" validate:"dive"`
}

// UpdateOrderStatusRequest moves one order to a new status.
type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

// OrderStatusItem is one {id,status} pair of a whole-array replace.
type OrderStatusItem struct {
	ID     string             `json:"id" validate:"required"`
	Status models.OrderStatus `json:"status" validate:"required"`
}

// ReplaceOrdersRequest rewrites the statuses of a visit's order lines.
type ReplaceOrdersRequest struct {
	Orders []OrderStatusItem `json:"orders" validate:"required,dive"`
}

// UpdateVisitStatusRequest sets the admin review status of a visit.
type UpdateVisitStatusRequest struct {
	Status models.VisitStatus `json:"status" validate:"required"`
}

// VisitService drives visit-report capture and order fulfilment.
type VisitService struct {
	repo      visitRepository
	doctors   visitDoctorLookup
	products  visitProductLookup
	validator *validator.Validate
	cache     *CacheService
	logger    *zap.Logger
}

// NewVisitService creates a VisitService instance.
func NewVisitService(repo visitRepository, doctors visitDoctorLookup, products visitProductLookup, validate *validator.Validate, cache *CacheService, logger *zap.Logger) *VisitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VisitService{repo: repo, doctors: doctors, products: products, validator: validate, cache: cache, logger: logger}
}

// Create records a visit with its discussed products and order lines in
// one transaction. Each order snapshots the product's current MRP as
// unit_price and computes total_amount once; later catalogue price
// changes never touch existing orders.
func (s *VisitService) Create(ctx context.Context, mrID string, req CreateVisitRequest) (*models.VisitReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid visit payload")
	}

	if _, err := s.doctors.FindByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "doctor does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify doctor")
	}

	catalogue, err := s.resolveProducts(ctx, req)
	if err != nil {
		return nil, err
	}

	visitDate := req.VisitDate
	if visitDate.IsZero() {
		visitDate = time.Now().UTC()
	}

	visit := &models.VisitReport{
		MRID:      mrID,
		DoctorID:  req.DoctorID,
		VisitDate: visitDate,
		Notes:     req.Notes,
		Status:    models.VisitSubmitted,
	}

	// Repeated mentions collapse to one row; (visit_id, product_id) is
	// the storage key.
	discussed := make(map[string]struct{}, len(req.ProductsDiscussed))
	for _, productID := range req.ProductsDiscussed {
		if _, ok := discussed[productID]; ok {
			continue
		}
		discussed[productID] = struct{}{}
		visit.ProductsDiscussed = append(visit.ProductsDiscussed, catalogue[productID])
	}

	for _, line := range req.Orders {
		product := catalogue[line.ProductID]
		visit.Orders = append(visit.Orders, models.Order{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.MRP,
			TotalAmount: product.MRP * float64(line.Quantity),
			Status:      models.OrderPending,
		})
	}

	if err := s.repo.CreateWithOrders(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record visit")
	}

	s.invalidateDashboards(ctx)
	return visit, nil
}

// Get returns a visit with products and orders. Reps can only read
// their own reports.
func (s *VisitService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.VisitReport, error) {
	visit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visit")
	}

	if actor != nil && actor.Role == models.RoleMR && visit.MRID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "visit belongs to another representative")
	}
	return visit, nil
}

// List returns visits matching the filter. Reps are forced onto their
// own reports regardless of the requested filter.
func (s *VisitService) List(ctx context.Context, filter models.VisitFilter, actor *models.JWTClaims) ([]models.VisitReport, *models.Pagination, error) {
	if actor != nil && actor.Role == models.RoleMR {
		filter.MRID = actor.UserID
	}

	visits, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visits")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return visits, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UpdateVisitStatus sets the review status of a visit.
func (s *VisitService) UpdateVisitStatus(ctx context.Context, id string, req UpdateVisitStatusRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid visit status payload")
	}

	switch req.Status {
	case models.VisitPending, models.VisitSubmitted, models.VisitCompleted, models.VisitApproved, models.VisitRejected:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown visit status %q", req.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "visit not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visit status")
	}

	s.invalidateDashboards(ctx)
	return nil
}

// UpdateOrderStatus moves one order line to a new status. Only legal
// successors are accepted; an illegal move leaves the row untouched and
// reports INVALID_TRANSITION.
func (s *VisitService) UpdateOrderStatus(ctx context.Context, visitID, orderID string, req UpdateOrderStatusRequest) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown order status %q", req.Status))
	}

	order, err := s.repo.FindOrder(ctx, visitID, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}

	if !order.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", order.Status, req.Status))
	}

	if err := s.repo.UpdateOrderStatus(ctx, visitID, orderID, order.Status, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "order status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update order status")
	}

	order.Status = req.Status
	s.invalidateDashboards(ctx)
	return order, nil
}

// ReplaceOrderStatuses rewrites all submitted order lines of a visit in
// one transaction, last write wins. Every pair is transition-validated
// against the stored row before anything is written.
func (s *VisitService) ReplaceOrderStatuses(ctx context.Context, visitID string, req ReplaceOrdersRequest) (*models.VisitReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid orders payload")
	}

	visit, err := s.repo.FindByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visit")
	}

	current := make(map[string]models.OrderStatus, len(visit.Orders))
	for _, order := range visit.Orders {
		current[order.ID] = order.Status
	}

	updates := make([]models.Order, 0, len(req.Orders))
	for _, item := range req.Orders {
		if !item.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown order status %q", item.Status))
		}
		from, ok := current[item.ID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("order %s does not belong to this visit", item.ID))
		}
		if from != item.Status && !from.CanTransitionTo(item.Status) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, item.Status))
		}
		updates = append(updates, models.Order{ID: item.ID, Status: item.Status})
	}

	if err := s.repo.ReplaceOrderStatuses(ctx, visitID, updates); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "orders changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update orders")
	}

	s.invalidateDashboards(ctx)

	updated, err := s.repo.FindByID(ctx, visitID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload visit")
	}
	return updated, nil
}

// invalidateDashboards drops cached dashboard payloads after a write
// that changes visit or order aggregates. Cached reads then rebuild on
// the next request instead of waiting out the TTL.
func (s *VisitService) invalidateDashboards(ctx context.Context) {
	s.cache.Invalidate(ctx, "dashboard:*")
}

// resolveProducts fetches every product referenced by the submission and
// rejects ids missing from the catalogue.
func (s *VisitService) resolveProducts(ctx context.Context, req CreateVisitRequest) (map[string]models.Product, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, id := range req.ProductsDiscussed {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, line := range req.Orders {
		if _, ok := seen[line.ProductID]; !ok {
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	catalogue := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return catalogue, nil
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve products")
	}
	for _, product := range products {
		catalogue[product.ID] = product
	}

	for _, id := range ids {
		if _, ok := catalogue[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("product %s does not exist", id))
		}
	}
	return catalogue, nil
}
