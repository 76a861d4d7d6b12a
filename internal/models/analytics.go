package models

import "time"

// OrderStatusSummary is one bucket of the order status breakdown.
type OrderStatusSummary struct {
	Status OrderStatus `db:"status" json:"status"`
	Count  int         `db:"count" json:"count"`
}

// ProductMentionSummary counts visit mentions per product.
type ProductMentionSummary struct {
	ProductID string `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name"`
	Count     int    `db:"count" json:"count"`
}

// MRActivitySummary aggregates one rep's visit and order footprint.
type MRActivitySummary struct {
	MRID       string  `db:"mr_id" json:"mr_id"`
	FullName   string  `db:"full_name" json:"full_name"`
	Territory  string  `db:"territory" json:"territory"`
	VisitCount int     `db:"visit_count" json:"visit_count"`
	OrderCount int     `db:"order_count" json:"order_count"`
	OrderValue float64 `db:"order_value" json:"order_value"`
}

// OrderAchievementSummary aggregates delivered orders inside a window.
type OrderAchievementSummary struct {
	OrderCount int     `db:"order_count"`
	SalesValue float64 `db:"sales_value"`
}

// SystemMetrics is a lightweight runtime snapshot for the metrics endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
