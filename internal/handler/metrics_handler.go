package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldmed/medrep-api/internal/service"
	"github.com/fieldmed/medrep-api/pkg/response"
)

// MetricsHandler exposes Prometheus scraping plus a JSON snapshot.
type MetricsHandler struct {
	service *service.MetricsService
}

// NewMetricsHandler creates a new handler.
func NewMetricsHandler(svc *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{service: svc}
}

// Prometheus serves the Prometheus exposition endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	h.service.Handler().ServeHTTP(c.Writer, c.Request)
}

// Snapshot godoc
// @Summary Runtime metrics snapshot
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/snapshot [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Snapshot(), nil)
}
