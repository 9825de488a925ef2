package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/service"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
	"github.com/noah-isme/defense-jury-api/pkg/response"
)

type sittingReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]dto.SittingDetail, error)
	Detail(ctx context.Context, sittingID string) (*dto.SittingDetail, error)
}

type scheduleExporter interface {
	Schedule(ctx context.Context, sessionID, format string) (*service.ExportFile, error)
}

// SittingHandler serves confirmed sittings and schedule exports.
type SittingHandler struct {
	sittings sittingReader
	exporter scheduleExporter
}

// NewSittingHandler constructs the handler.
func NewSittingHandler(sittings *service.SittingService, exporter *service.ExportService) *SittingHandler {
	return &SittingHandler{sittings: sittings, exporter: exporter}
}

// ListBySession godoc
// @Summary List the sittings of a session
// @Tags Sittings
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/sittings [get]
func (h *SittingHandler) ListBySession(c *gin.Context) {
	details, err := h.sittings.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, details)
}

// Detail godoc
// @Summary Get a sitting with its roster
// @Tags Sittings
// @Produce json
// @Param id path string true "Sitting ID"
// @Success 200 {object} response.Envelope
// @Router /sittings/{id} [get]
func (h *SittingHandler) Detail(c *gin.Context) {
	detail, err := h.sittings.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Export godoc
// @Summary Export the defense schedule of a session
// @Tags Sittings
// @Produce octet-stream
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /sessions/{id}/sittings/export [get]
func (h *SittingHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	var query dto.SittingExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.Schedule(c.Request.Context(), c.Param("id"), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
