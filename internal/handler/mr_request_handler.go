package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/service"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/response"
)

// MRRequestHandler exposes the access application workflow.
type MRRequestHandler struct {
	service *service.MRRequestService
}

// NewMRRequestHandler creates a new handler.
func NewMRRequestHandler(svc *service.MRRequestService) *MRRequestHandler {
	return &MRRequestHandler{service: svc}
}

// Submit godoc
// @Summary Apply for field access
// @Description Public application form for medical representative access
// @Tags MR Requests
// @Accept json
// @Produce json
// @Param payload body service.SubmitMRRequest true "Application"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /mr-requests [post]
func (h *MRRequestHandler) Submit(c *gin.Context) {
	var req service.SubmitMRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	request, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, request)
}

// List godoc
// @Summary List applications
// @Description List access applications, optionally filtered by status
// @Tags MR Requests
// @Produce json
// @Param status query string false "pending|approved|rejected"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /mr-requests [get]
func (h *MRRequestHandler) List(c *gin.Context) {
	filter := models.MRRequestFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.MRRequestStatus(raw)
		filter.Status = &status
	}

	requests, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

// Approve godoc
// @Summary Approve an application
// @Description Create the MR account and return its temporary credentials once
// @Tags MR Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mr-requests/{id}/approve [post]
func (h *MRRequestHandler) Approve(c *gin.Context) {
	credentials, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, credentials, nil)
}

// Reject godoc
// @Summary Reject an application
// @Tags MR Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RejectMRRequest false "Rejection reason"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mr-requests/{id}/reject [post]
func (h *MRRequestHandler) Reject(c *gin.Context) {
	var req service.RejectMRRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
			return
		}
	}

	if err := h.service.Reject(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a processed application
// @Tags MR Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mr-requests/{id} [delete]
func (h *MRRequestHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
