package models

import "time"

// VisitStatus tracks admin review of a visit report. The set is open on
// the consumer side; Completed and Approved both count as success for
// aggregation purposes.
type VisitStatus string

const (
	VisitPending   VisitStatus = "Pending"
	VisitSubmitted VisitStatus = "Submitted"
	VisitCompleted VisitStatus = "Completed"
	VisitApproved  VisitStatus = "Approved"
	VisitRejected  VisitStatus = "Rejected"
)

// Successful reports whether the visit counts toward achievements.
func (s VisitStatus) Successful() bool {
	return s == VisitCompleted || s == VisitApproved
}

// OrderStatus is the fulfilment state of a single order line.
type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

// orderTransitions is the full successor table. The machine is linear
// with a cancel escape before shipment; no backward moves, no skips.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered},
	OrderDelivered: {},
	OrderCancelled: {},
}

// Valid reports whether the status is a known order state.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no further transitions exist.
func (s OrderStatus) Terminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a single product order captured with a visit report. UnitPrice
// is a snapshot of the product MRP at submission time and TotalAmount is
// computed once at creation; neither is ever recomputed from the current
// catalogue price.
type Order struct {
	ID          string      `db:"id" json:"id"`
	VisitID     string      `db:"visit_id" json:"visit_id"`
	ProductID   string      `db:"product_id" json:"product_id"`
	ProductName string      `db:"product_name" json:"product_name,omitempty"`
	Quantity    int         `db:"quantity" json:"quantity"`
	UnitPrice   float64     `db:"unit_price" json:"unit_price"`
	TotalAmount float64     `db:"total_amount" json:"total_amount"`
	Status      OrderStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// VisitReport records one MR–doctor interaction plus any orders placed.
type VisitReport struct {
	ID         string      `db:"id" json:"id"`
	MRID       string      `db:"mr_id" json:"mr_id"`
	MRName     string      `db:"mr_name" json:"mr_name,omitempty"`
	DoctorID   string      `db:"doctor_id" json:"doctor_id"`
	DoctorName string      `db:"doctor_name" json:"doctor_name,omitempty"`
	VisitDate  time.Time   `db:"visit_date" json:"visit_date"`
	Notes      string      `db:"notes" json:"notes"`
	Status     VisitStatus `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`

	ProductsDiscussed []Product `db:"-" json:"products_discussed,omitempty"`
	Orders            []Order   `db:"-" json:"orders,omitempty"`
}

// VisitFilter captures listing criteria for visit reports.
type VisitFilter struct {
	MRID      string
	DoctorID  string
	Status    *VisitStatus
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}
