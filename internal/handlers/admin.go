package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// AdminHandler handles operational endpoints exposed on the internal router
type AdminHandler struct {
	sweepService service.SweepService
	logger       *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sweepService service.SweepService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

// RunSweep handles POST /admin/sweep. The scheduler runs sweeps on an
// interval; this endpoint triggers one on demand.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	now := time.Now().UTC()

	mutated, err := h.sweepService.RunSweep(c.Request.Context(), now)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SweepResponse{
		Mutated: mutated,
		RanAt:   now,
	})
}
