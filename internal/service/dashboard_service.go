package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/fieldmed/medrep-api/internal/dto"
	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
)

type dashboardVisitSource interface {
	Count(ctx context.Context) (int, error)
	CountOrders(ctx context.Context) (int, error)
	OrderFunnel(ctx context.Context) ([]models.OrderStatusSummary, error)
	TopDiscussedProducts(ctx context.Context, limit int) ([]models.ProductMentionSummary, error)
	MRActivity(ctx context.Context) ([]models.MRActivitySummary, error)
	RecentByMR(ctx context.Context, mrID string, limit int) ([]models.VisitReport, error)
}

type dashboardUserSource interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type dashboardDoctorSource interface {
	Count(ctx context.Context) (int, error)
}

type dashboardProductSource interface {
	Count(ctx context.Context) (int, error)
}

type dashboardRequestSource interface {
	CountByStatus(ctx context.Context, status models.MRRequestStatus) (int, error)
}

type dashboardTargetSource interface {
	ListForMR(ctx context.Context, mrID string, actor *models.JWTClaims) ([]models.TargetWithAchievement, error)
}

const (
	adminDashboardCacheKey = "dashboard:stats"
	mrDashboardCacheKey    = "dashboard:mr:%s"
	topProductsLimit       = 10
	recentVisitsLimit      = 5
)

// DashboardService aggregates reporting views. Results are cached with
// a short TTL; every miss recomputes by scanning the source tables.
type DashboardService struct {
	visits   dashboardVisitSource
	users    dashboardUserSource
	doctors  dashboardDoctorSource
	products dashboardProductSource
	requests dashboardRequestSource
	targets  dashboardTargetSource
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(visits dashboardVisitSource, users dashboardUserSource, doctors dashboardDoctorSource, products dashboardProductSource, requests dashboardRequestSource, targets dashboardTargetSource, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		visits:   visits,
		users:    users,
		doctors:  doctors,
		products: products,
		requests: requests,
		targets:  targets,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// AdminStats builds the admin overview: entity totals, the order status
// funnel, the ten most discussed products and a per-rep scorecard.
func (s *DashboardService) AdminStats(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	var cached dto.AdminDashboardResponse
	if s.cache.Get(ctx, adminDashboardCacheKey, &cached) {
		return &cached, nil
	}

	totals, err := s.buildTotals(ctx)
	if err != nil {
		return nil, err
	}

	funnel, err := s.visits.OrderFunnel(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build order funnel")
	}

	mentions, err := s.visits.TopDiscussedProducts(ctx, topProductsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank products")
	}

	activity, err := s.visits.MRActivity(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate rep activity")
	}

	resp := &dto.AdminDashboardResponse{
		Totals:        *totals,
		OrderFunnel:   make([]dto.OrderStatusCount, 0, len(funnel)),
		TopProducts:   make([]dto.ProductMention, 0, len(mentions)),
		MRPerformance: make([]dto.MRPerformance, 0, len(activity)),
		GeneratedAt:   time.Now().UTC(),
	}

	for _, bucket := range funnel {
		resp.OrderFunnel = append(resp.OrderFunnel, dto.OrderStatusCount{Status: string(bucket.Status), Count: bucket.Count})
	}
	for _, mention := range mentions {
		resp.TopProducts = append(resp.TopProducts, dto.ProductMention{ProductID: mention.ProductID, Name: mention.Name, Count: mention.Count})
	}
	for _, row := range activity {
		resp.MRPerformance = append(resp.MRPerformance, dto.MRPerformance{
			MRID:       row.MRID,
			FullName:   row.FullName,
			Territory:  row.Territory,
			VisitCount: row.VisitCount,
			OrderCount: row.OrderCount,
			OrderValue: row.OrderValue,
			Score:      performanceScore(row.VisitCount, row.OrderCount),
		})
	}

	s.cache.Set(ctx, adminDashboardCacheKey, resp, s.cacheTTL)
	return resp, nil
}

// MRStats builds a rep's own overview: counts, score, recent visits and
// target progress.
func (s *DashboardService) MRStats(ctx context.Context, actor *models.JWTClaims) (*dto.MRDashboardResponse, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing caller identity")
	}

	key := fmt.Sprintf(mrDashboardCacheKey, actor.UserID)
	var cached dto.MRDashboardResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	activity, err := s.visits.MRActivity(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate rep activity")
	}

	var own models.MRActivitySummary
	for _, row := range activity {
		if row.MRID == actor.UserID {
			own = row
			break
		}
	}

	recent, err := s.visits.RecentByMR(ctx, actor.UserID, recentVisitsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent visits")
	}

	targets, err := s.targets.ListForMR(ctx, actor.UserID, actor)
	if err != nil {
		return nil, err
	}

	resp := &dto.MRDashboardResponse{
		VisitCount:   own.VisitCount,
		OrderCount:   own.OrderCount,
		OrderValue:   own.OrderValue,
		Score:        performanceScore(own.VisitCount, own.OrderCount),
		RecentVisits: make([]dto.MRVisitSummary, 0, len(recent)),
		Targets:      targets,
		GeneratedAt:  time.Now().UTC(),
	}
	for _, visit := range recent {
		resp.RecentVisits = append(resp.RecentVisits, dto.MRVisitSummary{
			VisitID:    visit.ID,
			DoctorName: visit.DoctorName,
			VisitDate:  visit.VisitDate,
			Status:     string(visit.Status),
			OrderCount: len(visit.Orders),
		})
	}

	s.cache.Set(ctx, key, resp, s.cacheTTL)
	return resp, nil
}

func (s *DashboardService) buildTotals(ctx context.Context) (*dto.DashboardTotals, error) {
	mrs, err := s.users.CountByRole(ctx, models.RoleMR)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count representatives")
	}
	doctors, err := s.doctors.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count doctors")
	}
	products, err := s.products.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count products")
	}
	visits, err := s.visits.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count visits")
	}
	orders, err := s.visits.CountOrders(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count orders")
	}
	pending, err := s.requests.CountByStatus(ctx, models.MRRequestPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending applications")
	}

	return &dto.DashboardTotals{
		MRs:             mrs,
		Doctors:         doctors,
		Products:        products,
		Visits:          visits,
		Orders:          orders,
		PendingRequests: pending,
	}, nil
}

// performanceScore is the bounded visit-to-order heuristic:
// min(100, round(orders/visits*50+50)) when visits > 0, otherwise 0.
func performanceScore(visits, orders int) int {
	if visits <= 0 {
		return 0
	}
	score := math.Round(float64(orders)/float64(visits)*50 + 50)
	if score > 100 {
		return 100
	}
	return int(score)
}
