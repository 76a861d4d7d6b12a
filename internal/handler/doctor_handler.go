package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldmed/medrep-api/internal/models"
	"github.com/fieldmed/medrep-api/internal/service"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/response"
)

// DoctorHandler exposes the doctor roster endpoints.
type DoctorHandler struct {
	service *service.DoctorService
}

// NewDoctorHandler creates a new handler.
func NewDoctorHandler(svc *service.DoctorService) *DoctorHandler {
	return &DoctorHandler{service: svc}
}

// Create godoc
// @Summary Add a doctor
// @Description Representatives add to their own roster; admins add shared doctors
// @Tags Doctors
// @Accept json
// @Produce json
// @Param payload body service.DoctorRequest true "Doctor"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /doctors [post]
func (h *DoctorHandler) Create(c *gin.Context) {
	var req service.DoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid doctor payload"))
		return
	}

	doctor, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, doctor)
}

// List godoc
// @Summary List doctors
// @Description Representatives see their roster plus shared doctors
// @Tags Doctors
// @Produce json
// @Param specialization query string false "Specialization"
// @Param search query string false "Name or place search"
// @Success 200 {object} response.Envelope
// @Router /doctors [get]
func (h *DoctorHandler) List(c *gin.Context) {
	filter := models.DoctorFilter{
		Specialization: c.Query("specialization"),
		Search:         c.Query("search"),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 20),
	}

	doctors, pagination, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, doctors, pagination)
}

// Get godoc
// @Summary Get a doctor
// @Tags Doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /doctors/{id} [get]
func (h *DoctorHandler) Get(c *gin.Context) {
	doctor, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, doctor, nil)
}

// Update godoc
// @Summary Update a doctor
// @Tags Doctors
// @Accept json
// @Produce json
// @Param id path string true "Doctor ID"
// @Param payload body service.DoctorRequest true "Doctor"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /doctors/{id} [put]
func (h *DoctorHandler) Update(c *gin.Context) {
	var req service.DoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid doctor payload"))
		return
	}

	doctor, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, doctor, nil)
}

// Delete godoc
// @Summary Delete a doctor
// @Tags Doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /doctors/{id} [delete]
func (h *DoctorHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
