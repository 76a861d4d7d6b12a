package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fieldmed/medrep-api/internal/models"
)

const targetColumns = `id, target_code, mr_id, assigned_by, period_type, start_date, end_date, month, quarter, year, status,
	total_visits, new_doctor_visits, follow_up_visits, daily_visit_target,
	total_sales_value, total_orders, new_customer_orders,
	doctor_coverage_pct, market_penetration_pct, new_doctor_acquisition,
	created_at, updated_at`

// TargetRepository provides database access for assigned quotas.
type TargetRepository struct {
	db *sqlx.DB
}

// NewTargetRepository creates a new instance of TargetRepository.
func NewTargetRepository(db *sqlx.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// Create inserts a new target. The target code must already be assigned
// by the caller.
func (r *TargetRepository) Create(ctx context.Context, target *models.Target) error {
	if target.ID == "" {
		target.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	target.CreatedAt = now
	target.UpdatedAt = now
	if target.Status == "" {
		target.Status = models.TargetActive
	}

	const query = `INSERT INTO targets (id, target_code, mr_id, assigned_by, period_type, start_date, end_date, month, quarter, year, status,
			total_visits, new_doctor_visits, follow_up_visits, daily_visit_target,
			total_sales_value, total_orders, new_customer_orders,
			doctor_coverage_pct, market_penetration_pct, new_doctor_acquisition,
			created_at, updated_at)
		VALUES (:id, :target_code, :mr_id, :assigned_by, :period_type, :start_date, :end_date, :month, :quarter, :year, :status,
			:total_visits, :new_doctor_visits, :follow_up_visits, :daily_visit_target,
			:total_sales_value, :total_orders, :new_customer_orders,
			:doctor_coverage_pct, :market_penetration_pct, :new_doctor_acquisition,
			:created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, target); err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	return nil
}

// FindByID returns a target by identifier.
func (r *TargetRepository) FindByID(ctx context.Context, id string) (*models.Target, error) {
	query := fmt.Sprintf(`SELECT %s FROM targets WHERE id = $1 LIMIT 1`, targetColumns)
	var target models.Target
	if err := r.db.GetContext(ctx, &target, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find target: %w", err)
	}
	return &target, nil
}

// ListByMR returns all targets assigned to one rep, newest period first.
func (r *TargetRepository) ListByMR(ctx context.Context, mrID string) ([]models.Target, error) {
	query := fmt.Sprintf(`SELECT %s FROM targets WHERE mr_id = $1 ORDER BY start_date DESC`, targetColumns)
	var targets []models.Target
	if err := r.db.SelectContext(ctx, &targets, query, mrID); err != nil {
		return nil, fmt.Errorf("list targets by mr: %w", err)
	}
	return targets, nil
}

// List returns every target, newest period first.
func (r *TargetRepository) List(ctx context.Context) ([]models.Target, error) {
	query := fmt.Sprintf(`SELECT %s FROM targets ORDER BY start_date DESC`, targetColumns)
	var targets []models.Target
	if err := r.db.SelectContext(ctx, &targets, query); err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// UpdateStatus moves a target out of Active. The guard keeps completed
// and cancelled targets immutable.
func (r *TargetRepository) UpdateStatus(ctx context.Context, id string, status models.TargetStatus) error {
	const query = `UPDATE targets SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC(), models.TargetActive)
	if err != nil {
		return fmt.Errorf("update target status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update target status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a target record.
func (r *TargetRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM targets WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete target rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
