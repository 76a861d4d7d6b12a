package dto

import (
	"time"

	"github.com/fieldmed/medrep-api/internal/models"
)

// DashboardTotals carries the headline entity counts.
type DashboardTotals struct {
	MRs             int `json:"mrs"`
	Doctors         int `json:"doctors"`
	Products        int `json:"products"`
	Visits          int `json:"visits"`
	Orders          int `json:"orders"`
	PendingRequests int `json:"pending_requests"`
}

// OrderStatusCount is one slice of the order funnel.
type OrderStatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ProductMention counts how often a product was discussed across visits.
type ProductMention struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
}

// MRPerformance is the per-rep scorecard derived from visit and order
// counts. Score is the bounded heuristic, not revenue-weighted.
type MRPerformance struct {
	MRID       string  `json:"mr_id"`
	FullName   string  `json:"full_name"`
	Territory  string  `json:"territory"`
	VisitCount int     `json:"visit_count"`
	OrderCount int     `json:"order_count"`
	OrderValue float64 `json:"order_value"`
	Score      int     `json:"score"`
}

// AdminDashboardResponse is the admin overview payload.
type AdminDashboardResponse struct {
	Totals        DashboardTotals    `json:"totals"`
	OrderFunnel   []OrderStatusCount `json:"order_funnel"`
	TopProducts   []ProductMention   `json:"top_products"`
	MRPerformance []MRPerformance    `json:"mr_performance"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// MRVisitSummary is a condensed recent-visit row for the MR dashboard.
type MRVisitSummary struct {
	VisitID    string    `json:"visit_id"`
	DoctorName string    `json:"doctor_name"`
	VisitDate  time.Time `json:"visit_date"`
	Status     string    `json:"status"`
	OrderCount int       `json:"order_count"`
}

// MRDashboardResponse is the rep-facing overview payload.
type MRDashboardResponse struct {
	VisitCount   int                            `json:"visit_count"`
	OrderCount   int                            `json:"order_count"`
	OrderValue   float64                        `json:"order_value"`
	Score        int                            `json:"score"`
	RecentVisits []MRVisitSummary               `json:"recent_visits"`
	Targets      []models.TargetWithAchievement `json:"targets"`
	GeneratedAt  time.Time                      `json:"generated_at"`
}
