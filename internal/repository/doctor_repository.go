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

const doctorColumns = `id, full_name, qualification, specialization, place, phone, email, assigned_mr, created_at, updated_at`

// DoctorRepository provides database access for the doctor roster.
type DoctorRepository struct {
	db *sqlx.DB
}

// NewDoctorRepository creates a new instance of DoctorRepository.
func NewDoctorRepository(db *sqlx.DB) *DoctorRepository {
	return &DoctorRepository{db: db}
}

// Create inserts a new doctor record.
func (r *DoctorRepository) Create(ctx context.Context, doctor *models.Doctor) error {
	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doctor.CreatedAt.IsZero() {
		doctor.CreatedAt = now
	}
	doctor.UpdatedAt = now

	const query = `INSERT INTO doctors (id, full_name, qualification, specialization, place, phone, email, assigned_mr, created_at, updated_at)
		VALUES (:id, :full_name, :qualification, :specialization, :place, :phone, :email, :assigned_mr, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	return nil
}

// FindByID returns a doctor by identifier.
func (r *DoctorRepository) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	query := fmt.Sprintf(`SELECT %s FROM doctors WHERE id = $1 LIMIT 1`, doctorColumns)
	var doctor models.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find doctor: %w", err)
	}
	return &doctor, nil
}

// List returns doctors matching the filter with total count. When
// AssignedMR is set with IncludeShared, the rep's personal roster is
// combined with unassigned (shared) doctors.
func (r *DoctorRepository) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error) {
	baseQuery := `FROM doctors WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.AssignedMR != nil {
		if filter.IncludeShared {
			conditions = append(conditions, fmt.Sprintf("(assigned_mr = $%d OR assigned_mr IS NULL)", len(args)+1))
		} else {
			conditions = append(conditions, fmt.Sprintf("assigned_mr = $%d", len(args)+1))
		}
		args = append(args, *filter.AssignedMR)
	}
	if filter.Specialization != "" {
		conditions = append(conditions, fmt.Sprintf("specialization = $%d", len(args)+1))
		args = append(args, filter.Specialization)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(place) LIKE $%d)", len(args)+1, len(args)+1))
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY full_name ASC LIMIT %d OFFSET %d", doctorColumns, baseQuery, pageSize, offset)

	var doctors []models.Doctor
	if err := r.db.SelectContext(ctx, &doctors, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	return doctors, total, nil
}

// Update updates mutable fields of a doctor.
func (r *DoctorRepository) Update(ctx context.Context, doctor *models.Doctor) error {
	doctor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE doctors SET full_name = :full_name, qualification = :qualification, specialization = :specialization, place = :place, phone = :phone, email = :email, assigned_mr = :assigned_mr, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

// Delete removes a doctor record.
func (r *DoctorRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM doctors WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	return nil
}

// Count returns the total number of doctors.
func (r *DoctorRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM doctors`); err != nil {
		return 0, fmt.Errorf("count doctors: %w", err)
	}
	return total, nil
}

// CountAddedSince returns doctors added to a rep's roster in a window.
func (r *DoctorRepository) CountAddedSince(ctx context.Context, mrID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM doctors WHERE assigned_mr = $1 AND created_at >= $2 AND created_at <= $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, mrID, from, to); err != nil {
		return 0, fmt.Errorf("count doctors added: %w", err)
	}
	return total, nil
}
