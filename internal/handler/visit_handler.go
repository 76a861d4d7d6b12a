package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/service"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/response"
)

// VisitHandler exposes visit-report capture and order fulfilment.
type VisitHandler struct {
	service *service.VisitService
	exports *service.ExportService
}

// NewVisitHandler creates a new handler.
func NewVisitHandler(svc *service.VisitService, exports *service.ExportService) *VisitHandler {
	return &VisitHandler{service: svc, exports: exports}
}

// Create godoc
// @Summary Submit a visit report
// @Description Record a doctor visit with discussed products and optional orders
// @Tags Visits
// @Accept json
// @Produce json
// @Param payload body service.CreateVisitRequest true "Visit report"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /visits [post]
func (h *VisitHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid visit payload"))
		return
	}

	visit, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, visit)
}

// List godoc
// @Summary List visit reports
// @Description List visits with filters; representatives only see their own
// @Tags Visits
// @Produce json
// @Param mr query string false "MR ID (admin only)"
// @Param doctor query string false "Doctor ID"
// @Param status query string false "Visit status"
// @Param startDate query string false "RFC3339 or 2006-01-02"
// @Param endDate query string false "RFC3339 or 2006-01-02"
// @Success 200 {object} response.Envelope
// @Router /visits [get]
func (h *VisitHandler) List(c *gin.Context) {
	filter, err := visitFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	visits, pagination, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, visits, pagination)
}

// Get godoc
// @Summary Get a visit report
// @Tags Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visits/{id} [get]
func (h *VisitHandler) Get(c *gin.Context) {
	visit, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, visit, nil)
}

// UpdateStatus godoc
// @Summary Update visit review status
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body service.UpdateVisitStatusRequest true "New status"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visits/{id}/status [patch]
func (h *VisitHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateVisitStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	if err := h.service.UpdateVisitStatus(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// UpdateOrderStatus godoc
// @Summary Move an order to a new status
// @Description Only legal successors are accepted; illegal moves return 409
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param orderId path string true "Order ID"
// @Param payload body service.UpdateOrderStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visits/{id}/orders/{orderId}/status [put]
func (h *VisitHandler) UpdateOrderStatus(c *gin.Context) {
	var req service.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	order, err := h.service.UpdateOrderStatus(c.Request.Context(), c.Param("id"), c.Param("orderId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, order, nil)
}

// ReplaceOrders godoc
// @Summary Replace statuses of all submitted orders of a visit
// @Description Whole-array replace; each pair is transition-validated first
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body service.ReplaceOrdersRequest true "Order statuses"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visits/{id}/orders [patch]
func (h *VisitHandler) ReplaceOrders(c *gin.Context) {
	var req service.ReplaceOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid orders payload"))
		return
	}

	visit, err := h.service.ReplaceOrderStatuses(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, visit, nil)
}

// Export godoc
// @Summary Export filtered visits
// @Description Download the filtered visit list as CSV or PDF
// @Tags Visits
// @Produce octet-stream
// @Param format query string true "csv|pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /visits/export [get]
func (h *VisitHandler) Export(c *gin.Context) {
	filter, err := visitFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.Visits(c.Request.Context(), filter, format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

func visitFilterFromQuery(c *gin.Context) (models.VisitFilter, error) {
	filter := models.VisitFilter{
		MRID:     c.Query("mr"),
		DoctorID: c.Query("doctor"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.VisitStatus(raw)
		filter.Status = &status
	}
	start, err := parseDateQuery(c.Query("startDate"))
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "invalid startDate")
	}
	filter.StartDate = start
	end, err := parseDateQuery(c.Query("endDate"))
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "invalid endDate")
	}
	filter.EndDate = end
	return filter, nil
}

func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
