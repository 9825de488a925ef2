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

type sessionService interface {
	Create(ctx context.Context, req dto.CreateSessionRequest, actorID string) (*models.DefenseSession, error)
	List(ctx context.Context, query dto.SessionQuery) ([]models.DefenseSession, error)
	Get(ctx context.Context, id string) (*models.DefenseSession, error)
	Activate(ctx context.Context, id, actorID string) (*models.DefenseSession, error)
}

// SessionHandler exposes defense session endpoints.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// Create godoc
// @Summary Open a defense session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List godoc
// @Summary List defense sessions
// @Tags Sessions
// @Produce json
// @Param level query string false "Academic level"
// @Param academicYear query string false "Academic year"
// @Param active query bool false "Only active sessions"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var query dto.SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session query"))
		return
	}
	sessions, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sessions)
}

// Get godoc
// @Summary Get a defense session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Activate godoc
// @Summary Make a session the active one of its level
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/activate [post]
func (h *SessionHandler) Activate(c *gin.Context) {
	session, err := h.service.Activate(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}
