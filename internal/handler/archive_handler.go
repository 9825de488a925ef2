package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/service"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
	"github.com/noah-isme/defense-jury-api/pkg/response"
)

type archiveService interface {
	GetDownloadURL(ctx context.Context, verdictID string) (*dto.VerdictDocumentResponse, error)
	Download(ctx context.Context, token string) (*service.ArchiveDownload, error)
}

// ArchiveHandler serves archived verdict records.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(service archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: service}
}

// DocumentURL godoc
// @Summary Get a signed link to the verdict record (PV)
// @Tags Verdicts
// @Produce json
// @Param id path string true "Verdict ID"
// @Success 200 {object} response.Envelope
// @Router /verdicts/{id}/document [get]
func (h *ArchiveHandler) DocumentURL(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "archive service not configured"))
		return
	}
	link, err := h.service.GetDownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Download godoc
// @Summary Download the verdict record via signed token
// @Tags Verdicts
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /verdicts/documents/{token} [get]
func (h *ArchiveHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "archive service not configured"))
		return
	}
	token := c.Param("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, "application/pdf", result.File, nil)
}
