package models

import "time"

// MRRequestStatus enumerates the portal-access application lifecycle.
type MRRequestStatus string

const (
	MRRequestPending  MRRequestStatus = "pending"
	MRRequestApproved MRRequestStatus = "approved"
	MRRequestRejected MRRequestStatus = "rejected"
)

// MRRequest is a public application for medical representative access.
// The only legal transitions are pending→approved and pending→rejected,
// both terminal. Approval is the single path that turns outside input into
// a User account.
type MRRequest struct {
	ID              string          `db:"id" json:"id"`
	FullName        string          `db:"full_name" json:"full_name"`
	Email           string          `db:"email" json:"email"`
	Phone           string          `db:"phone" json:"phone"`
	Area            string          `db:"area" json:"area"`
	Experience      string          `db:"experience" json:"experience"`
	Status          MRRequestStatus `db:"status" json:"status"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	LinkedUserID    *string         `db:"linked_user_id" json:"linked_user_id,omitempty"`
	ProcessedAt     *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Pending reports whether the request still awaits an admin decision.
func (r *MRRequest) Pending() bool {
	return r != nil && r.Status == MRRequestPending
}

// MRRequestFilter captures listing criteria for applications.
type MRRequestFilter struct {
	Status   *MRRequestStatus
	Search   string
	Page     int
	PageSize int
}

// ApprovedCredentials is returned to the admin exactly once after approval.
// The plaintext temporary password is never persisted or surfaced again.
type ApprovedCredentials struct {
	Email        string `json:"email"`
	TempPassword string `json:"temp_password"`
	UserID       string `json:"user_id"`
}
