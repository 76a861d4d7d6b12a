package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldmed/medrep-api/internal/dto"
	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/service"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/response"
)

// ProductHandler exposes the catalogue endpoints.
type ProductHandler struct {
	service *service.ProductService
}

// NewProductHandler creates a new handler.
func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{service: svc}
}

// Create godoc
// @Summary Create a product
// @Tags Products
// @Accept json
// @Produce json
// @Param payload body dto.ProductRequest true "Product"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid product payload"))
		return
	}

	product, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, product)
}

// List godoc
// @Summary List products
// @Tags Products
// @Produce json
// @Param category query string false "Category"
// @Param search query string false "Name or composition search"
// @Success 200 {object} response.Envelope
// @Router /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	filter := models.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	products, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, products, pagination)
}

// Get godoc
// @Summary Get a product
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, product, nil)
}

// Update godoc
// @Summary Update a product
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param payload body dto.ProductRequest true "Product"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid product payload"))
		return
	}

	product, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, product, nil)
}

// Delete godoc
// @Summary Delete a product
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// BackfillCodes godoc
// @Summary Assign codes to uncoded products
// @Description Assign sequential PROD#### codes to products missing one
// @Tags Products
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /products/backfill-codes [post]
func (h *ProductHandler) BackfillCodes(c *gin.Context) {
	result, err := h.service.BackfillCodes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Import godoc
// @Summary Import products from CSV
// @Description Upload a CSV file; rows without a name are skipped
// @Tags Products
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /products/import [post]
func (h *ProductHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "csv file upload required"))
		return
	}
	defer file.Close()

	result, err := h.service.Import(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
