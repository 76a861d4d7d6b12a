package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldmed/medrep-api/internal/service"
	"github.com/fieldmed/medrep-api/pkg/response"
)

// DashboardHandler exposes the reporting overviews.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// AdminStats godoc
// @Summary Admin dashboard
// @Description Entity totals, order funnel, top products and per-rep scorecard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) AdminStats(c *gin.Context) {
	stats, err := h.service.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// MRStats godoc
// @Summary Representative dashboard
// @Description The caller's own counts, recent visits and target progress
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/mr [get]
func (h *DashboardHandler) MRStats(c *gin.Context) {
	stats, err := h.service.MRStats(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
