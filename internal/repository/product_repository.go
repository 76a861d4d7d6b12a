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

const productColumns = `id, product_code, name, category, composition, dosage_form, mrp, created_at, updated_at`

// ProductRepository provides database access for the product catalogue.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new instance of ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product. A nil ProductCode is stored as NULL;
// the sparse unique index tolerates any number of uncoded rows.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	const query = `INSERT INTO products (id, product_code, name, category, composition, dosage_form, mrp, created_at, updated_at)
		VALUES (:id, :product_code, :name, :category, :composition, :dosage_form, :mrp, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// FindByID returns a product by identifier.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 LIMIT 1`, productColumns)
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &product, nil
}

// FindByIDs returns all products whose ids appear in the given set.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM products WHERE id IN (?)`, productColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build products in query: %w", err)
	}
	query = r.db.Rebind(query)

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("find products by ids: %w", err)
	}
	return products, nil
}

// List returns products matching the filter with total count.
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	baseQuery := `FROM products WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(composition) LIKE $%d)", len(args)+1, len(args)+1))
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", productColumns, baseQuery, pageSize, offset)

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	return products, total, nil
}

// Update updates mutable fields of a product.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	const query = `UPDATE products SET product_code = :product_code, name = :name, category = :category, composition = :composition, dosage_form = :dosage_form, mrp = :mrp, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete removes a product record.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM products WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ListMissingCodes returns ids of products without a product code, in
// insertion order so backfilled codes stay stable across runs.
func (r *ProductRepository) ListMissingCodes(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM products WHERE product_code IS NULL ORDER BY created_at ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list products missing codes: %w", err)
	}
	return ids, nil
}

// SetCode assigns a product code to a single product.
func (r *ProductRepository) SetCode(ctx context.Context, id, code string) error {
	const query = `UPDATE products SET product_code = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("set product code: %w", err)
	}
	return nil
}

// Count returns the total number of products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}
