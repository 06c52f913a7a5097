package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/forkful/pantry-service/internal/middleware"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// SessionHandler handles cooking session HTTP requests
type SessionHandler struct {
	sessionService service.SessionService
	orchestrator   service.ConsumptionOrchestrator
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessionService service.SessionService,
	orchestrator service.ConsumptionOrchestrator,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		orchestrator:   orchestrator,
		logger:         logger,
	}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_session_id",
			Message: "session id must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return sessionID, true
}

// StartSession handles POST /sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	callerID := middleware.CallerID(c)

	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	session, err := h.sessionService.StartSession(c.Request.Context(), callerID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("cooking session started",
		"caller_id", callerID,
		"session_id", session.ID(),
		"recipe_id", session.RecipeID(),
		"steps", len(session.Steps()))

	c.JSON(http.StatusCreated, models.NewSessionResponse(session))
}

// GetSession handles GET /sessions/:sessionID
func (h *SessionHandler) GetSession(c *gin.Context) {
	callerID := middleware.CallerID(c)

	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), callerID, sessionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.NewSessionResponse(session))
}

// CompleteStep handles POST /sessions/:sessionID/steps/:stepID/complete
func (h *SessionHandler) CompleteStep(c *gin.Context) {
	callerID := middleware.CallerID(c)

	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	stepID := c.Param("stepID")

	var req models.CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := models.ValidateCompleteStepRequest(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cmd := &service.CompleteStepCommand{
		SessionID:    sessionID,
		StepID:       stepID,
		CallerID:     callerID,
		TimerSeconds: req.TimerSeconds,
		Consumptions: req.Consumptions,
	}

	resp, err := h.orchestrator.CompleteStep(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("step completed",
		"caller_id", callerID,
		"session_id", sessionID,
		"step_id", stepID,
		"batches", len(resp.Results))

	c.JSON(http.StatusOK, resp)
}

// FinishSession handles POST /sessions/:sessionID/finish. The route sits
// behind the idempotency guard; retries replay the first response.
func (h *SessionHandler) FinishSession(c *gin.Context) {
	callerID := middleware.CallerID(c)

	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req models.FinishSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.sessionService.FinishSession(c.Request.Context(), callerID, sessionID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("cooking session finished",
		"caller_id", callerID,
		"session_id", sessionID,
		"leftover_portions", resp.LeftoverPortions)

	c.JSON(http.StatusOK, resp)
}
