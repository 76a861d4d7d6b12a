package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldmed/medrep-api/internal/dto"
	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/export"
)

type productRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	ListMissingCodes(ctx context.Context) ([]string, error)
	SetCode(ctx context.Context, id, code string) error
}

type codeSequence interface {
	NextCode(ctx context.Context, name, prefix string) (string, error)
}

const productSequence = "product_code"

// ProductService handles catalogue workflows: CRUD in the nested DTO
// shape, CSV import and product-code backfill.
type ProductService struct {
	repo      productRepository
	sequences codeSequence
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProductService creates a ProductService instance.
func NewProductService(repo productRepository, sequences codeSequence, validate *validator.Validate, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProductService{repo: repo, sequences: sequences, validator: validate, logger: logger}
}

// Create adds a catalogue row from the nested payload.
func (s *ProductService) Create(ctx context.Context, req dto.ProductRequest) (*dto.ProductResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}

	product := productFromRequest(req)
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create product")
	}

	resp := dto.NewProductResponse(product)
	return &resp, nil
}

// Get returns one catalogue row.
func (s *ProductService) Get(ctx context.Context, id string) (*dto.ProductResponse, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	resp := dto.NewProductResponse(product)
	return &resp, nil
}

// List returns catalogue rows matching the filter.
func (s *ProductService) List(ctx context.Context, filter models.ProductFilter) ([]dto.ProductResponse, *models.Pagination, error) {
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list products")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return dto.NewProductResponses(products), &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update replaces the mutable fields of a catalogue row.
func (s *ProductService) Update(ctx context.Context, id string, req dto.ProductRequest) (*dto.ProductResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}

	if req.ProductCode != nil {
		product.ProductCode = req.ProductCode
	}
	product.Name = req.BasicInfo.Name
	product.Category = req.BasicInfo.Category
	product.Composition = req.MedicalInfo.Composition
	product.DosageForm = req.MedicalInfo.DosageForm
	product.MRP = req.BusinessInfo.MRP

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update product")
	}

	resp := dto.NewProductResponse(product)
	return &resp, nil
}

// Delete removes a catalogue row.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete product")
	}
	return nil
}

// BackfillCodes assigns sequential PROD#### codes to rows that have none,
// oldest first. Already coded rows are never touched.
func (s *ProductService) BackfillCodes(ctx context.Context) (*dto.BackfillCodesResult, error) {
	ids, err := s.repo.ListMissingCodes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan uncoded products")
	}

	assigned := 0
	for _, id := range ids {
		code, err := s.sequences.NextCode(ctx, productSequence, "PROD")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate product code")
		}
		if err := s.repo.SetCode(ctx, id, code); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign product code")
		}
		assigned++
	}

	return &dto.BackfillCodesResult{Assigned: assigned}, nil
}

// Import reads a CSV catalogue upload and inserts one product per row.
// Rows without a name are skipped, not rejected; a malformed file fails
// as a whole but inserted rows from a partial run are kept.
func (s *ProductService) Import(ctx context.Context, r io.Reader) (*dto.ProductImportResult, error) {
	dataset, err := export.Parse(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid csv upload")
	}

	result := &dto.ProductImportResult{}
	for _, row := range dataset.Rows {
		name := strings.TrimSpace(row["name"])
		if name == "" {
			result.Skipped++
			continue
		}

		product := &models.Product{
			Name:        name,
			Category:    strings.TrimSpace(row["category"]),
			Composition: strings.TrimSpace(row["composition"]),
			DosageForm:  strings.TrimSpace(row["dosage_form"]),
		}
		if code := strings.TrimSpace(row["product_code"]); code != "" {
			product.ProductCode = &code
		}
		if raw := strings.TrimSpace(row["mrp"]); raw != "" {
			mrp, err := strconv.ParseFloat(raw, 64)
			if err != nil || mrp < 0 {
				result.Skipped++
				continue
			}
			product.MRP = mrp
		}

		if err := s.repo.Create(ctx, product); err != nil {
			s.logger.Warn("product import row failed", zap.String("name", name), zap.Error(err))
			result.Skipped++
			continue
		}
		result.Imported++
	}

	return result, nil
}

func productFromRequest(req dto.ProductRequest) *models.Product {
	return &models.Product{
		ProductCode: req.ProductCode,
		Name:        req.BasicInfo.Name,
		Category:    req.BasicInfo.Category,
		Composition: req.MedicalInfo.Composition,
		DosageForm:  req.MedicalInfo.DosageForm,
		MRP:         req.BusinessInfo.MRP,
	}
}
