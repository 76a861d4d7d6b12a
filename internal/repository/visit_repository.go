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

const orderColumns = `o.id, o.visit_id, o.product_id, p.name AS product_name, o.quantity, o.unit_price, o.total_amount, o.status, o.created_at, o.updated_at`

// VisitRepository provides database access for visit reports and their
// order lines.
type VisitRepository struct {
	db *sqlx.DB
}

// NewVisitRepository creates a new instance of VisitRepository.
func NewVisitRepository(db *sqlx.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// CreateWithOrders inserts a visit report, its discussed products and
// its order lines in one transaction. Order snapshots (unit price,
// total amount) must already be computed by the caller.
func (r *VisitRepository) CreateWithOrders(ctx context.Context, visit *models.VisitReport) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin visit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	visit.CreatedAt = now
	visit.UpdatedAt = now
	if visit.Status == "" {
		visit.Status = models.VisitSubmitted
	}

	const insertVisit = `INSERT INTO visit_reports (id, mr_id, doctor_id, visit_date, notes, status, created_at, updated_at)
		VALUES (:id, :mr_id, :doctor_id, :visit_date, :notes, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertVisit, visit); err != nil {
		return fmt.Errorf("create visit report: %w", err)
	}

	const insertProduct = `INSERT INTO visit_products (visit_id, product_id, position) VALUES ($1, $2, $3)`
	for i, product := range visit.ProductsDiscussed {
		if _, err := tx.ExecContext(ctx, insertProduct, visit.ID, product.ID, i); err != nil {
			return fmt.Errorf("create visit product: %w", err)
		}
	}

	const insertOrder = `INSERT INTO orders (id, visit_id, product_id, quantity, unit_price, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	for i := range visit.Orders {
		order := &visit.Orders[i]
		if order.ID == "" {
			order.ID = uuid.NewString()
		}
		order.VisitID = visit.ID
		order.CreatedAt = now
		order.UpdatedAt = now
		if order.Status == "" {
			order.Status = models.OrderPending
		}
		if _, err := tx.ExecContext(ctx, insertOrder, order.ID, order.VisitID, order.ProductID, order.Quantity, order.UnitPrice, order.TotalAmount, order.Status, now); err != nil {
			return fmt.Errorf("create visit order: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit visit tx: %w", err)
	}
	return nil
}

// FindByID returns a visit report with discussed products and orders.
func (r *VisitRepository) FindByID(ctx context.Context, id string) (*models.VisitReport, error) {
	const query = `SELECT v.id, v.mr_id, u.full_name AS mr_name, v.doctor_id, d.full_name AS doctor_name, v.visit_date, v.notes, v.status, v.created_at, v.updated_at
		FROM visit_reports v
		JOIN users u ON u.id = v.mr_id
		JOIN doctors d ON d.id = v.doctor_id
		WHERE v.id = $1 LIMIT 1`
	var visit models.VisitReport
	if err := r.db.GetContext(ctx, &visit, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find visit report: %w", err)
	}

	const productsQuery = `SELECT p.id, p.product_code, p.name, p.category, p.composition, p.dosage_form, p.mrp, p.created_at, p.updated_at
		FROM visit_products vp
		JOIN products p ON p.id = vp.product_id
		WHERE vp.visit_id = $1
		ORDER BY vp.position ASC`
	if err := r.db.SelectContext(ctx, &visit.ProductsDiscussed, productsQuery, id); err != nil {
		return nil, fmt.Errorf("load visit products: %w", err)
	}

	ordersQuery := fmt.Sprintf(`SELECT %s FROM orders o JOIN products p ON p.id = o.product_id WHERE o.visit_id = $1 ORDER BY o.created_at ASC`, orderColumns)
	if err := r.db.SelectContext(ctx, &visit.Orders, ordersQuery, id); err != nil {
		return nil, fmt.Errorf("load visit orders: %w", err)
	}

	return &visit, nil
}

// List returns visit reports matching the filter with total count.
// Orders are attached in a single follow-up query.
func (r *VisitRepository) List(ctx context.Context, filter models.VisitFilter) ([]models.VisitReport, int, error) {
	baseQuery := `FROM visit_reports v JOIN users u ON u.id = v.mr_id JOIN doctors d ON d.id = v.doctor_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.MRID != "" {
		conditions = append(conditions, fmt.Sprintf("v.mr_id = $%d", len(args)+1))
		args = append(args, filter.MRID)
	}
	if filter.DoctorID != "" {
		conditions = append(conditions, fmt.Sprintf("v.doctor_id = $%d", len(args)+1))
		args = append(args, filter.DoctorID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("v.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("v.visit_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("v.visit_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
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

	listQuery := fmt.Sprintf(`SELECT v.id, v.mr_id, u.full_name AS mr_name, v.doctor_id, d.full_name AS doctor_name, v.visit_date, v.notes, v.status, v.created_at, v.updated_at %s ORDER BY v.visit_date DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var visits []models.VisitReport
	if err := r.db.SelectContext(ctx, &visits, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list visit reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visit reports: %w", err)
	}

	if err := r.attachOrders(ctx, visits); err != nil {
		return nil, 0, err
	}
	if err := r.attachProducts(ctx, visits); err != nil {
		return nil, 0, err
	}

	return visits, total, nil
}

func (r *VisitRepository) attachOrders(ctx context.Context, visits []models.VisitReport) error {
	if len(visits) == 0 {
		return nil
	}
	ids := make([]string, len(visits))
	index := make(map[string]*models.VisitReport, len(visits))
	for i := range visits {
		ids[i] = visits[i].ID
		index[visits[i].ID] = &visits[i]
	}

	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM orders o JOIN products p ON p.id = o.product_id WHERE o.visit_id IN (?) ORDER BY o.created_at ASC`, orderColumns), ids)
	if err != nil {
		return fmt.Errorf("build orders in query: %w", err)
	}
	query = r.db.Rebind(query)

	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return fmt.Errorf("load orders for visits: %w", err)
	}

	for _, order := range orders {
		if visit, ok := index[order.VisitID]; ok {
			visit.Orders = append(visit.Orders, order)
		}
	}
	return nil
}

func (r *VisitRepository) attachProducts(ctx context.Context, visits []models.VisitReport) error {
	if len(visits) == 0 {
		return nil
	}
	ids := make([]string, len(visits))
	index := make(map[string]*models.VisitReport, len(visits))
	for i := range visits {
		ids[i] = visits[i].ID
		index[visits[i].ID] = &visits[i]
	}

	query, args, err := sqlx.In(`SELECT vp.visit_id, p.id, p.product_code, p.name, p.category, p.composition, p.dosage_form, p.mrp, p.created_at, p.updated_at
		FROM visit_products vp
		JOIN products p ON p.id = vp.product_id
		WHERE vp.visit_id IN (?)
		ORDER BY vp.visit_id, vp.position ASC`, ids)
	if err != nil {
		return fmt.Errorf("build visit products in query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load products for visits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var visitID string
		var product models.Product
		if err := rows.Scan(&visitID, &product.ID, &product.ProductCode, &product.Name, &product.Category, &product.Composition, &product.DosageForm, &product.MRP, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return fmt.Errorf("scan visit product: %w", err)
		}
		if visit, ok := index[visitID]; ok {
			visit.ProductsDiscussed = append(visit.ProductsDiscussed, product)
		}
	}
	return rows.Err()
}

// FindOrder returns a single order line scoped to its parent visit.
func (r *VisitRepository) FindOrder(ctx context.Context, visitID, orderID string) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders o JOIN products p ON p.id = o.product_id WHERE o.id = $1 AND o.visit_id = $2 LIMIT 1`, orderColumns)
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, orderID, visitID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

// UpdateOrderStatus moves an order to the next status. The WHERE guard
// on the current status makes concurrent conflicting updates lose with
// sql.ErrNoRows instead of clobbering each other.
func (r *VisitRepository) UpdateOrderStatus(ctx context.Context, visitID, orderID string, from, to models.OrderStatus) error {
	const query = `UPDATE orders SET status = $4, updated_at = $5 WHERE id = $1 AND visit_id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, orderID, visitID, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceOrderStatuses rewrites the statuses of all given order lines
// of one visit in a single transaction. Whole-array replace semantics:
// last write wins for the full set.
func (r *VisitRepository) ReplaceOrderStatuses(ctx context.Context, visitID string, orders []models.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace orders tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND visit_id = $2`
	now := time.Now().UTC()
	for _, order := range orders {
		res, err := tx.ExecContext(ctx, query, order.ID, visitID, order.Status, now)
		if err != nil {
			return fmt.Errorf("replace order status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("replace order status rows: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace orders tx: %w", err)
	}
	return nil
}

// UpdateStatus sets the review status of a visit report.
func (r *VisitRepository) UpdateStatus(ctx context.Context, id string, status models.VisitStatus) error {
	const query = `UPDATE visit_reports SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update visit status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visit status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of visit reports.
func (r *VisitRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM visit_reports`); err != nil {
		return 0, fmt.Errorf("count visit reports: %w", err)
	}
	return total, nil
}

// CountOrders returns the total number of order lines.
func (r *VisitRepository) CountOrders(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return total, nil
}

// OrderFunnel returns order counts grouped by status.
func (r *VisitRepository) OrderFunnel(ctx context.Context) ([]models.OrderStatusSummary, error) {
	const query = `SELECT status, COUNT(*) AS count FROM orders GROUP BY status ORDER BY count DESC`
	var funnel []models.OrderStatusSummary
	if err := r.db.SelectContext(ctx, &funnel, query); err != nil {
		return nil, fmt.Errorf("order funnel: %w", err)
	}
	return funnel, nil
}

// TopDiscussedProducts groups visit mentions by product and returns the
// most discussed ones, ties broken by name for stable output.
func (r *VisitRepository) TopDiscussedProducts(ctx context.Context, limit int) ([]models.ProductMentionSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT p.id AS product_id, p.name, COUNT(*) AS count
		FROM visit_products vp
		JOIN products p ON p.id = vp.product_id
		GROUP BY p.id, p.name
		ORDER BY count DESC, p.name ASC
		LIMIT $1`
	var mentions []models.ProductMentionSummary
	if err := r.db.SelectContext(ctx, &mentions, query, limit); err != nil {
		return nil, fmt.Errorf("top discussed products: %w", err)
	}
	return mentions, nil
}

// MRActivity aggregates visit and order footprints for every active MR.
func (r *VisitRepository) MRActivity(ctx context.Context) ([]models.MRActivitySummary, error) {
	const query = `SELECT u.id AS mr_id, u.full_name, u.territory,
			COUNT(DISTINCT v.id) AS visit_count,
			COUNT(o.id) AS order_count,
			COALESCE(SUM(o.total_amount), 0) AS order_value
		FROM users u
		LEFT JOIN visit_reports v ON v.mr_id = u.id
		LEFT JOIN orders o ON o.visit_id = v.id
		WHERE u.role = 'MR' AND u.active = TRUE
		GROUP BY u.id, u.full_name, u.territory
		ORDER BY u.full_name ASC`
	var activity []models.MRActivitySummary
	if err := r.db.SelectContext(ctx, &activity, query); err != nil {
		return nil, fmt.Errorf("mr activity: %w", err)
	}
	return activity, nil
}

// CountVisitsInWindow returns one rep's visit count inside a window.
func (r *VisitRepository) CountVisitsInWindow(ctx context.Context, mrID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM visit_reports WHERE mr_id = $1 AND visit_date >= $2 AND visit_date <= $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, mrID, from, to); err != nil {
		return 0, fmt.Errorf("count visits in window: %w", err)
	}
	return total, nil
}

// DeliveredOrdersInWindow aggregates delivered order count and value for
// one rep inside a window.
func (r *VisitRepository) DeliveredOrdersInWindow(ctx context.Context, mrID string, from, to time.Time) (*models.OrderAchievementSummary, error) {
	const query = `SELECT COUNT(o.id) AS order_count, COALESCE(SUM(o.total_amount), 0) AS sales_value
		FROM orders o
		JOIN visit_reports v ON v.id = o.visit_id
		WHERE v.mr_id = $1 AND o.status = $2 AND v.visit_date >= $3 AND v.visit_date <= $4`
	var summary models.OrderAchievementSummary
	if err := r.db.GetContext(ctx, &summary, query, mrID, models.OrderDelivered, from, to); err != nil {
		return nil, fmt.Errorf("delivered orders in window: %w", err)
	}
	return &summary, nil
}

// RecentByMR returns a rep's latest visits with order counts.
func (r *VisitRepository) RecentByMR(ctx context.Context, mrID string, limit int) ([]models.VisitReport, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT v.id, v.mr_id, u.full_name AS mr_name, v.doctor_id, d.full_name AS doctor_name, v.visit_date, v.notes, v.status, v.created_at, v.updated_at
		FROM visit_reports v
		JOIN users u ON u.id = v.mr_id
		JOIN doctors d ON d.id = v.doctor_id
		WHERE v.mr_id = $1
		ORDER BY v.visit_date DESC
		LIMIT $2`
	var visits []models.VisitReport
	if err := r.db.SelectContext(ctx, &visits, query, mrID, limit); err != nil {
		return nil, fmt.Errorf("recent visits by mr: %w", err)
	}
	if err := r.attachOrders(ctx, visits); err != nil {
		return nil, err
	}
	return visits, nil
}
