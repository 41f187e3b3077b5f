package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/umworks/aurora-sync/internal/models"
	"github.com/umworks/aurora-sync/internal/service"
	"github.com/umworks/aurora-sync/pkg/response"
)

// StudentHandler exposes student lookup endpoints.
type StudentHandler struct {
	students *service.FindService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.FindService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List or find students
// @Description With q, resolves the term to exactly one student the way
// @Description staff type identifiers: student number, login, clicker ID
// @Description or name fragments. Without q, returns a paged listing.
// @Tags Students
// @Produce json
// @Param q query string false "Search term"
// @Param websync query bool false "Also consult the remote clicker registry"
// @Param search query string false "Name filter for the paged listing"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		useWebsync := c.Query("websync") == "true"
		student, err := h.students.Find(c.Request.Context(), q, useWebsync)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, student, nil)
		return
	}

	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if active := c.Query("active"); active != "" {
		if active == "true" {
			v := true
			filter.Active = &v
		} else if active == "false" {
			v := false
			filter.Active = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	students, total, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student profile
// @Description Returns the student with registrations and history
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	profile, err := h.students.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
