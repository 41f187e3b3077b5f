package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umworks/aurora-sync/internal/middleware"
	"github.com/umworks/aurora-sync/internal/models"
	"github.com/umworks/aurora-sync/internal/service"
	appErrors "github.com/umworks/aurora-sync/pkg/errors"
	"github.com/umworks/aurora-sync/pkg/response"
)

// ImportHandler exposes extract upload endpoints.
type ImportHandler struct {
	imports     *service.ImportService
	maxFileSize int64
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService, maxFileSize int64) *ImportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	return &ImportHandler{imports: imports, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Upload a registrar extract
// @Description Accepts a classlist or registration report CSV and
// @Description reconciles it against the local records. The extract kind
// @Description is detected from its layout.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Extract file"
// @Param sectionId formData string false "Expected section"
// @Param requireValidLogin formData bool false "Skip rows without a resolvable login"
// @Param ignoreUnknownSections formData bool false "Skip report rows for unknown sections"
// @Param createSection formData bool false "Create the classlist section when missing"
// @Param force formData bool false "Override the empty-import check"
// @Param dryRun formData bool false "Validate without writing"
// @Param async formData bool false "Queue the import and return immediately"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Create(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "extract file is required"))
		return
	}
	if header.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "extract file is too large"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	req := service.ImportRequest{
		Filename: header.Filename,
		DryRun:   c.PostForm("dryRun") == "true",
		Options: models.ImportOptions{
			SectionID:             c.PostForm("sectionId"),
			RequireValidLogin:     c.PostForm("requireValidLogin") == "true",
			IgnoreUnknownSections: c.PostForm("ignoreUnknownSections") == "true",
			CreateSection:         c.PostForm("createSection") == "true",
			Force:                 c.PostForm("force") == "true",
		},
	}
	if claims := middleware.Claims(c); claims != nil {
		req.CreatedBy = claims.UserID
	}

	var reader io.Reader = io.LimitReader(file, h.maxFileSize)
	if c.PostForm("async") == "true" && !req.DryRun {
		job, err := h.imports.Enqueue(c.Request.Context(), req, reader)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, job, nil)
		return
	}

	job, err := h.imports.Import(c.Request.Context(), req, reader)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Get godoc
// @Summary Get an import job
// @Tags Imports
// @Produce json
// @Param id path string true "Import job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /imports/{id} [get]
func (h *ImportHandler) Get(c *gin.Context) {
	job, err := h.imports.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
