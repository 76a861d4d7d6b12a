package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldmed/medrep-api/internal/service"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/response"
)

// TargetHandler exposes quota assignment and progress endpoints.
type TargetHandler struct {
	service *service.TargetService
}

// NewTargetHandler creates a new handler.
func NewTargetHandler(svc *service.TargetService) *TargetHandler {
	return &TargetHandler{service: svc}
}

// Create godoc
// @Summary Assign a target
// @Description Assign a period-scoped quota to a representative
// @Tags Targets
// @Accept json
// @Produce json
// @Param payload body service.CreateTargetRequest true "Target"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /targets [post]
func (h *TargetHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid target payload"))
		return
	}

	target, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, target)
}

// ListForMR godoc
// @Summary List a representative's targets with progress
// @Description Achievements are computed on read from visits and delivered orders
// @Tags Targets
// @Produce json
// @Param mrId path string true "MR ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /targets/{mrId} [get]
func (h *TargetHandler) ListForMR(c *gin.Context) {
	targets, err := h.service.ListForMR(c.Request.Context(), c.Param("mrId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, targets, nil)
}

// UpdateStatus godoc
// @Summary Complete or cancel a target
// @Tags Targets
// @Accept json
// @Produce json
// @Param id path string true "Target ID"
// @Param payload body service.UpdateTargetStatusRequest true "New status"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /targets/{id}/status [patch]
func (h *TargetHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateTargetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	if err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
