package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/internal/service"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
	"github.com/noah-isme/defense-jury-api/pkg/response"
)

type verdictService interface {
	Create(ctx context.Context, sittingID, evaluatorID string, req dto.CreateVerdictRequest) (*models.Verdict, error)
	GetBySitting(ctx context.Context, sittingID string) (*models.Verdict, error)
	Update(ctx context.Context, verdictID, evaluatorID string, req dto.UpdateVerdictRequest) (*models.Verdict, error)
	Submit(ctx context.Context, verdictID, evaluatorID string) (*models.Verdict, error)
	Approve(ctx context.Context, verdictID, evaluatorID string) (*models.Verdict, error)
	Discard(ctx context.Context, verdictID, evaluatorID string) error
}

// VerdictHandler exposes the verdict consensus workflow.
type VerdictHandler struct {
	service verdictService
}

// NewVerdictHandler constructs the handler.
func NewVerdictHandler(svc *service.VerdictService) *VerdictHandler {
	return &VerdictHandler{service: svc}
}

// Create godoc
// @Summary Create the verdict of a sitting
// @Description Only the sitting's president may create it. Non-draft verdicts start PENDING with the president's approval.
// @Tags Verdicts
// @Accept json
// @Produce json
// @Param id path string true "Sitting ID"
// @Param payload body dto.CreateVerdictRequest true "Verdict payload"
// @Success 201 {object} response.Envelope
// @Router /sittings/{id}/verdict [post]
func (h *VerdictHandler) Create(c *gin.Context) {
	evaluatorID, err := evaluatorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateVerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verdict payload"))
		return
	}
	verdict, err := h.service.Create(c.Request.Context(), c.Param("id"), evaluatorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, verdict)
}

// GetBySitting godoc
// @Summary Get the verdict of a sitting
// @Tags Verdicts
// @Produce json
// @Param id path string true "Sitting ID"
// @Success 200 {object} response.Envelope
// @Router /sittings/{id}/verdict [get]
func (h *VerdictHandler) GetBySitting(c *gin.Context) {
	verdict, err := h.service.GetBySitting(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, verdict)
}

// Update godoc
// @Summary Replace the content of a draft or pending verdict
// @Tags Verdicts
// @Accept json
// @Produce json
// @Param id path string true "Verdict ID"
// @Param payload body dto.UpdateVerdictRequest true "Verdict payload"
// @Success 200 {object} response.Envelope
// @Router /verdicts/{id} [put]
func (h *VerdictHandler) Update(c *gin.Context) {
	evaluatorID, err := evaluatorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateVerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verdict payload"))
		return
	}
	verdict, err := h.service.Update(c.Request.Context(), c.Param("id"), evaluatorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, verdict)
}

// Submit godoc
// @Summary Submit a draft verdict for approval
// @Tags Verdicts
// @Produce json
// @Param id path string true "Verdict ID"
// @Success 200 {object} response.Envelope
// @Router /verdicts/{id}/submit [post]
func (h *VerdictHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve godoc
// @Summary Record the caller's approval
// @Description The verdict is finalized once every voting member has approved.
// @Tags Verdicts
// @Produce json
// @Param id path string true "Verdict ID"
// @Success 200 {object} response.Envelope
// @Router /verdicts/{id}/approvals [post]
func (h *VerdictHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Discard godoc
// @Summary Discard a verdict that no other member has approved
// @Tags Verdicts
// @Param id path string true "Verdict ID"
// @Success 204
// @Router /verdicts/{id} [delete]
func (h *VerdictHandler) Discard(c *gin.Context) {
	evaluatorID, err := evaluatorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Discard(c.Request.Context(), c.Param("id"), evaluatorID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *VerdictHandler) transition(c *gin.Context, fn func(ctx context.Context, verdictID, evaluatorID string) (*models.Verdict, error)) {
	evaluatorID, err := evaluatorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	verdict, err := fn(c.Request.Context(), c.Param("id"), evaluatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, verdict)
}
