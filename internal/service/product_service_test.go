package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldmed/medrep-api/internal/dto"
	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
)

type mockProductRepo struct {
	products     map[string]*models.Product
	created      []*models.Product
	createErr    error
	missingCodes []string
	codes        map[string]string
}

func (m *mockProductRepo) Create(ctx context.Context, product *models.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	product.ID = fmt.Sprintf("prod-%d", len(m.created)+1)
	m.created = append(m.created, product)
	return nil
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return product, nil
}

func (m *mockProductRepo) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	var out []models.Product
	for _, product := range m.products {
		out = append(out, *product)
	}
	return out, len(out), nil
}

func (m *mockProductRepo) Update(ctx context.Context, product *models.Product) error {
	return nil
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockProductRepo) ListMissingCodes(ctx context.Context) ([]string, error) {
	return m.missingCodes, nil
}

func (m *mockProductRepo) SetCode(ctx context.Context, id, code string) error {
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[id] = code
	return nil
}

type mockSequence struct {
	next int
	err  error
}

func (m *mockSequence) NextCode(ctx context.Context, name, prefix string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.next++
	return fmt.Sprintf("%s%04d", prefix, m.next), nil
}

func newProductService(repo *mockProductRepo, seq *mockSequence) *ProductService {
	return NewProductService(repo, seq, validator.New(), zap.NewNop())
}

func TestProductServiceCreate(t *testing.T) {
	repo := &mockProductRepo{}
	svc := newProductService(repo, &mockSequence{})

	resp, err := svc.Create(context.Background(), dto.ProductRequest{
		BasicInfo:    dto.ProductBasicInfo{Name: "Paracetamol 500", Category: "Analgesic"},
		MedicalInfo:  dto.ProductMedicalInfo{Composition: "Paracetamol IP 500mg", DosageForm: "Tablet"},
		BusinessInfo: dto.ProductBusinessInfo{MRP: 25.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500", resp.BasicInfo.Name)
	assert.Equal(t, 25.5, resp.BusinessInfo.MRP)
	require.Len(t, repo.created, 1)
}

func TestProductServiceCreateRequiresName(t *testing.T) {
	svc := newProductService(&mockProductRepo{}, &mockSequence{})

	_, err := svc.Create(context.Background(), dto.ProductRequest{
		BusinessInfo: dto.ProductBusinessInfo{MRP: 10},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProductServiceBackfillCodes(t *testing.T) {
	repo := &mockProductRepo{missingCodes: []string{"a", "b", "c"}}
	seq := &mockSequence{}
	svc := newProductService(repo, seq)

	result, err := svc.BackfillCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Assigned)
	assert.Equal(t, "PROD0001", repo.codes["a"])
	assert.Equal(t, "PROD0003", repo.codes["c"])
}

func TestProductServiceBackfillCodesSequenceFailure(t *testing.T) {
	repo := &mockProductRepo{missingCodes: []string{"a"}}
	svc := newProductService(repo, &mockSequence{err: errors.New("sequence down")})

	_, err := svc.BackfillCodes(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestProductServiceImportSkipsNamelessRows(t *testing.T) {
	repo := &mockProductRepo{}
	svc := newProductService(repo, &mockSequence{})

	csv := strings.Join([]string{
		"name,category,mrp",
		"Amoxicillin 250,Antibiotic,80",
		",Antibiotic,50",
		"Cetirizine 10,Antihistamine,18.5",
	}, "\n")

	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, repo.created, 2)
	assert.Equal(t, "Amoxicillin 250", repo.created[0].Name)
	assert.Equal(t, 80.0, repo.created[0].MRP)
}

func TestProductServiceImportSkipsBadPrice(t *testing.T) {
	repo := &mockProductRepo{}
	svc := newProductService(repo, &mockSequence{})

	csv := "name,mrp\nValid Product,19.9\nBroken Price,abc\nNegative,-4\n"
	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Skipped)
}

func TestProductServiceImportRowInsertFailure(t *testing.T) {
	repo := &mockProductRepo{createErr: errors.New("duplicate code")}
	svc := newProductService(repo, &mockSequence{})

	result, err := svc.Import(context.Background(), strings.NewReader("name\nOnly Row\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestProductServiceGetNotFound(t *testing.T) {
	svc := newProductService(&mockProductRepo{}, &mockSequence{})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
