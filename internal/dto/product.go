package dto

import (
	"time"

	"github.com/fieldmed/medrep-api/internal/models"
)

// ProductBasicInfo groups identity fields of the nested product shape.
type ProductBasicInfo struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
}

// ProductMedicalInfo groups pharmacological fields.
type ProductMedicalInfo struct {
	Composition string `json:"composition"`
	DosageForm  string `json:"dosageForm"`
}

// ProductBusinessInfo groups commercial fields.
type ProductBusinessInfo struct {
	MRP float64 `json:"mrp" validate:"gte=0"`
}

// ProductRequest is the nested create/update payload for catalogue rows.
// ProductCode is optional; missing codes stay NULL until backfilled.
type ProductRequest struct {
	ProductCode  *string             `json:"productId,omitempty"`
	BasicInfo    ProductBasicInfo    `json:"basicInfo" validate:"required"`
	MedicalInfo  ProductMedicalInfo  `json:"medicalInfo"`
	BusinessInfo ProductBusinessInfo `json:"businessInfo"`
}

// ProductResponse mirrors the nested request shape for reads.
type ProductResponse struct {
	ID           string              `json:"id"`
	ProductCode  *string             `json:"productId,omitempty"`
	BasicInfo    ProductBasicInfo    `json:"basicInfo"`
	MedicalInfo  ProductMedicalInfo  `json:"medicalInfo"`
	BusinessInfo ProductBusinessInfo `json:"businessInfo"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// ProductImportResult summarizes a CSV catalogue import.
type ProductImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// BackfillCodesResult reports how many catalogue rows received codes.
type BackfillCodesResult struct {
	Assigned int `json:"assigned"`
}

// NewProductResponse converts a flat catalogue row into the nested shape.
func NewProductResponse(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		ProductCode: p.ProductCode,
		BasicInfo: ProductBasicInfo{
			Name:     p.Name,
			Category: p.Category,
		},
		MedicalInfo: ProductMedicalInfo{
			Composition: p.Composition,
			DosageForm:  p.DosageForm,
		},
		BusinessInfo: ProductBusinessInfo{
			MRP: p.MRP,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// NewProductResponses maps a slice of catalogue rows.
func NewProductResponses(products []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, NewProductResponse(&products[i]))
	}
	return out
}
