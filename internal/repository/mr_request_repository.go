package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fieldmed/medrep-api/internal/models"
)

const mrRequestColumns = `id, full_name, email, phone, area, experience, status, rejection_reason, linked_user_id, processed_at, created_at, updated_at`

// MRRequestRepository provides database access for MR access applications.
type MRRequestRepository struct {
	db *sqlx.DB
}

// NewMRRequestRepository creates a new instance of MRRequestRepository.
func NewMRRequestRepository(db *sqlx.DB) *MRRequestRepository {
	return &MRRequestRepository{db: db}
}

// Create inserts a new pending application.
func (r *MRRequestRepository) Create(ctx context.Context, req *models.MRRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.MRRequestPending
	}

	const query = `INSERT INTO mr_requests (id, full_name, email, phone, area, experience, status, created_at, updated_at)
		VALUES (:id, :full_name, :email, :phone, :area, :experience, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create mr request: %w", err)
	}
	return nil
}

// FindByID returns an application by identifier.
func (r *MRRequestRepository) FindByID(ctx context.Context, id string) (*models.MRRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM mr_requests WHERE id = $1 LIMIT 1`, mrRequestColumns)
	var req models.MRRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find mr request: %w", err)
	}
	return &req, nil
}

// List returns applications matching the filter with total count.
func (r *MRRequestRepository) List(ctx context.Context, filter models.MRRequestFilter) ([]models.MRRequest, int, error) {
	baseQuery := `FROM mr_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", mrRequestColumns, baseQuery, pageSize, offset)

	var requests []models.MRRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list mr requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count mr requests: %w", err)
	}

	return requests, total, nil
}

// Approve flips a pending request to approved and creates the linked MR
// user inside one transaction. The status guard makes concurrent
// approvals lose cleanly; if any step fails the request stays pending.
func (r *MRRequestRepository) Approve(ctx context.Context, requestID string, user *models.User, processedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const insertUser = `INSERT INTO users (id, email, password_hash, full_name, role, employee_id, territory, phone, city, first_login, active, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :full_name, :role, :employee_id, :territory, :phone, :city, :first_login, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertUser, user); err != nil {
		return fmt.Errorf("create approved user: %w", translateError(err))
	}

	const flip = `UPDATE mr_requests SET status = $2, linked_user_id = $3, processed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5`
	res, err := tx.ExecContext(ctx, flip, requestID, models.MRRequestApproved, user.ID, processedAt, models.MRRequestPending)
	if err != nil {
		return fmt.Errorf("approve mr request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve mr request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve tx: %w", err)
	}
	return nil
}

// Reject flips a pending request to rejected. The status guard keeps
// processed requests immutable.
func (r *MRRequestRepository) Reject(ctx context.Context, requestID string, reason *string, processedAt time.Time) error {
	const query = `UPDATE mr_requests SET status = $2, rejection_reason = $3, processed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, requestID, models.MRRequestRejected, reason, processedAt, models.MRRequestPending)
	if err != nil {
		return fmt.Errorf("reject mr request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject mr request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a processed application. Pending requests are guarded
// at the service layer.
func (r *MRRequestRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM mr_requests WHERE id = $1 AND status <> $2`
	res, err := r.db.ExecContext(ctx, query, id, models.MRRequestPending)
	if err != nil {
		return fmt.Errorf("delete mr request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete mr request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of applications with the given status.
func (r *MRRequestRepository) CountByStatus(ctx context.Context, status models.MRRequestStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM mr_requests WHERE status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, status); err != nil {
		return 0, fmt.Errorf("count mr requests by status: %w", err)
	}
	return total, nil
}
