package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/middleware"
	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/internal/service"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
	"github.com/noah-isme/defense-jury-api/pkg/response"
)

const maxProposalDates = 31

type juryScheduler interface {
	Generate(ctx context.Context, req dto.GenerateProposalsRequest, actorID string) (*models.ProposalBatch, error)
	GetProposal(ctx context.Context, batchID string) (*models.ProposalBatch, error)
	Confirm(ctx context.Context, batchID string, req dto.ConfirmProposalsRequest, actorID string) (*dto.ConfirmProposalsResponse, error)
}

type sittingOverrides interface {
	Swap(ctx context.Context, req dto.SwapSittingsRequest, actorID string) (*dto.SwapSittingsResponse, error)
	EditMembers(ctx context.Context, sittingID string, req dto.EditSittingMembersRequest, actorID string) (*models.Sitting, error)
}

// JuryHandler exposes proposal generation, confirmation and manual overrides.
type JuryHandler struct {
	scheduler juryScheduler
	overrides sittingOverrides
}

// NewJuryHandler constructs the handler.
func NewJuryHandler(scheduler *service.JuryService, overrides *service.SittingOverrideService) *JuryHandler {
	return &JuryHandler{scheduler: scheduler, overrides: overrides}
}

// Generate godoc
// @Summary Generate jury proposals for a session
// @Description Proposals are a preview; nothing is reserved until the batch is confirmed.
// @Tags Jury
// @Accept json
// @Produce json
// @Param payload body dto.GenerateProposalsRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /jury/proposals [post]
func (h *JuryHandler) Generate(c *gin.Context) {
	var req dto.GenerateProposalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}
	if len(req.Dates) > maxProposalDates {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dates exceeds supported limit"))
		return
	}
	batch, err := h.scheduler.Generate(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, batch, middleware.ExtractMeta(c))
}

// GetProposal godoc
// @Summary Get a pending proposal batch
// @Tags Jury
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /jury/proposals/{batchId} [get]
func (h *JuryHandler) GetProposal(c *gin.Context) {
	batch, err := h.scheduler.GetProposal(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, batch, middleware.ExtractMeta(c))
}

// Confirm godoc
// @Summary Confirm valid sittings of a proposal batch
// @Tags Jury
// @Accept json
// @Produce json
// @Param batchId path string true "Batch ID"
// @Param payload body dto.ConfirmProposalsRequest false "Sitting indexes to confirm"
// @Success 201 {object} response.Envelope
// @Router /jury/proposals/{batchId}/confirm [post]
func (h *JuryHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmProposalsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirm payload"))
			return
		}
	}
	result, err := h.scheduler.Confirm(c.Request.Context(), c.Param("batchId"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Swap godoc
// @Summary Swap the time slots of two confirmed sittings
// @Tags Jury
// @Accept json
// @Produce json
// @Param payload body dto.SwapSittingsRequest true "Swap payload"
// @Success 200 {object} response.Envelope
// @Router /sittings/swap [post]
func (h *JuryHandler) Swap(c *gin.Context) {
	var req dto.SwapSittingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	result, err := h.overrides.Swap(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// EditMembers godoc
// @Summary Apply a membership diff to a confirmed sitting
// @Tags Jury
// @Accept json
// @Produce json
// @Param id path string true "Sitting ID"
// @Param payload body dto.EditSittingMembersRequest true "Membership diff"
// @Success 200 {object} response.Envelope
// @Router /sittings/{id}/members [patch]
func (h *JuryHandler) EditMembers(c *gin.Context) {
	var req dto.EditSittingMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid membership payload"))
		return
	}
	sitting, err := h.overrides.EditMembers(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sitting)
}
