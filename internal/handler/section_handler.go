package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/umworks/aurora-sync/internal/service"
	"github.com/umworks/aurora-sync/pkg/response"
)

// rosterCache stores rendered rosters between imports. Entries live under
// the roster: prefix so a committed import can drop them all at once.
type rosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SectionHandler exposes section and roster endpoints.
type SectionHandler struct {
	exports  *service.ExportService
	cache    rosterCache
	cacheTTL time.Duration
	metrics  *service.MetricsService
}

// NewSectionHandler constructs SectionHandler. cache and metrics may be nil.
func NewSectionHandler(exports *service.ExportService, cache rosterCache, cacheTTL time.Duration, metrics *service.MetricsService) *SectionHandler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SectionHandler{exports: exports, cache: cache, cacheTTL: cacheTTL, metrics: metrics}
}

// List godoc
// @Summary List sections
// @Tags Sections
// @Produce json
// @Param active query bool false "Only active sections"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *SectionHandler) List(c *gin.Context) {
	sections, err := h.exports.Sections(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// Roster godoc
// @Summary Export a section roster
// @Description Streams the active registrations of one section as CSV or PDF
// @Tags Sections
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Section ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /sections/{id}/roster [get]
func (h *SectionHandler) Roster(c *gin.Context) {
	id := c.Param("id")
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	key := "roster:" + id + ":" + string(format)

	if h.cache != nil {
		var cached service.ExportFile
		if err := h.cache.Get(c.Request.Context(), key, &cached); err == nil && len(cached.Data) > 0 {
			if h.metrics != nil {
				h.metrics.RecordCacheHit()
			}
			h.stream(c, &cached)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordCacheMiss()
		}
	}

	file, err := h.exports.Roster(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.cache != nil {
		// best effort; a cold cache only costs the next render
		_ = h.cache.Set(c.Request.Context(), key, file, h.cacheTTL)
	}
	h.stream(c, file)
}

func (h *SectionHandler) stream(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
