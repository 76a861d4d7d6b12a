package models

import "time"

// TargetStatus tracks the lifecycle of an assigned quota.
type TargetStatus string

const (
	TargetActive    TargetStatus = "Active"
	TargetCompleted TargetStatus = "Completed"
	TargetCancelled TargetStatus = "Cancelled"
)

// PeriodType enumerates quota horizons.
type PeriodType string

const (
	PeriodMonthly    PeriodType = "Monthly"
	PeriodQuarterly  PeriodType = "Quarterly"
	PeriodHalfYearly PeriodType = "Half-Yearly"
	PeriodYearly     PeriodType = "Yearly"
)

// Target is a period-scoped quota assigned to one MR by an admin.
// Achievement counters are never stored; they are recomputed on read by
// scanning visit reports and orders inside the period window.
type Target struct {
	ID         string       `db:"id" json:"id"`
	TargetCode string       `db:"target_code" json:"target_code"`
	MRID       string       `db:"mr_id" json:"mr_id"`
	AssignedBy string       `db:"assigned_by" json:"assigned_by"`
	PeriodType PeriodType   `db:"period_type" json:"period_type"`
	StartDate  time.Time    `db:"start_date" json:"start_date"`
	EndDate    time.Time    `db:"end_date" json:"end_date"`
	Month      *int         `db:"month" json:"month,omitempty"`
	Quarter    *int         `db:"quarter" json:"quarter,omitempty"`
	Year       int          `db:"year" json:"year"`
	Status     TargetStatus `db:"status" json:"status"`

	TotalVisits      int `db:"total_visits" json:"total_visits"`
	NewDoctorVisits  int `db:"new_doctor_visits" json:"new_doctor_visits"`
	FollowUpVisits   int `db:"follow_up_visits" json:"follow_up_visits"`
	DailyVisitTarget int `db:"daily_visit_target" json:"daily_visit_target"`

	TotalSalesValue   float64 `db:"total_sales_value" json:"total_sales_value"`
	TotalOrders       int     `db:"total_orders" json:"total_orders"`
	NewCustomerOrders int     `db:"new_customer_orders" json:"new_customer_orders"`

	DoctorCoveragePct    float64 `db:"doctor_coverage_pct" json:"doctor_coverage_pct"`
	MarketPenetrationPct float64 `db:"market_penetration_pct" json:"market_penetration_pct"`
	NewDoctorAcquisition int     `db:"new_doctor_acquisition" json:"new_doctor_acquisition"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TargetAchievement carries the read-time counters for one target.
type TargetAchievement struct {
	VisitsCompleted int       `json:"visits_completed"`
	SalesAchieved   float64   `json:"sales_achieved"`
	OrdersCompleted int       `json:"orders_completed"`
	NewDoctorsAdded int       `json:"new_doctors_added"`
	VisitPct        float64   `json:"visit_pct"`
	SalesPct        float64   `json:"sales_pct"`
	OrderPct        float64   `json:"order_pct"`
	LastUpdated     time.Time `json:"last_updated"`
}

// TargetWithAchievement is a target joined with its derived counters.
type TargetWithAchievement struct {
	Target      Target            `json:"target"`
	Achievement TargetAchievement `json:"achievement"`
}

// AchievementPct returns achieved/target*100. A zero or negative target
// denominator yields 0, never NaN or Inf.
func AchievementPct(achieved, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return achieved / target * 100
}
