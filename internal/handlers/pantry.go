package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/forkful/pantry-service/internal/middleware"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// PantryHandler handles batch-related HTTP requests
type PantryHandler struct {
	pantryService service.PantryService
	logger        *slog.Logger
}

// NewPantryHandler creates a new pantry handler
func NewPantryHandler(pantryService service.PantryService, logger *slog.Logger) *PantryHandler {
	return &PantryHandler{
		pantryService: pantryService,
		logger:        logger,
	}
}

func parseBatchID(c *gin.Context) (uuid.UUID, bool) {
	batchID, err := uuid.Parse(c.Param("batchID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_batch_id",
			Message: "batch id must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return batchID, true
}

// ListBatches handles GET /batches
func (h *PantryHandler) ListBatches(c *gin.Context) {
	callerID := middleware.CallerID(c)

	batches, err := h.pantryService.ListBatches(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// AddBatch handles POST /batches
func (h *PantryHandler) AddBatch(c *gin.Context) {
	callerID := middleware.CallerID(c)

	var req models.AddBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	batch, err := h.pantryService.AddBatch(c.Request.Context(), callerID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("batch added",
		"caller_id", callerID,
		"batch_id", batch.ID(),
		"ingredient_id", batch.IngredientID())

	c.JSON(http.StatusCreated, models.NewBatchResponse(batch))
}

// GetBatch handles GET /batches/:batchID
func (h *PantryHandler) GetBatch(c *gin.Context) {
	callerID := middleware.CallerID(c)

	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	batch, err := h.pantryService.GetBatch(c.Request.Context(), callerID, batchID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.NewBatchResponse(batch))
}

// transitionFunc is one single-batch lifecycle operation.
type transitionFunc func(c *gin.Context, callerID string, batchID uuid.UUID) (*models.Batch, error)

func (h *PantryHandler) transition(c *gin.Context, name string, fn transitionFunc) {
	callerID := middleware.CallerID(c)

	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	batch, err := fn(c, callerID, batchID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("batch transition applied",
		"caller_id", callerID,
		"batch_id", batchID,
		"operation", name,
		"state", string(batch.State()))

	c.JSON(http.StatusOK, models.NewBatchResponse(batch))
}

// ReserveBatch handles POST /batches/:batchID/reserve
func (h *PantryHandler) ReserveBatch(c *gin.Context) {
	h.transition(c, "reserve", func(c *gin.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
		return h.pantryService.ReserveBatch(c.Request.Context(), callerID, batchID)
	})
}

// FreezeBatch handles POST /batches/:batchID/freeze
func (h *PantryHandler) FreezeBatch(c *gin.Context) {
	var req models.FreezeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	h.transition(c, "freeze", func(c *gin.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
		return h.pantryService.FreezeBatch(c.Request.Context(), callerID, batchID, req.NewExpiry)
	})
}

// QuarantineBatch handles POST /batches/:batchID/quarantine
func (h *PantryHandler) QuarantineBatch(c *gin.Context) {
	h.transition(c, "quarantine", func(c *gin.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
		return h.pantryService.QuarantineBatch(c.Request.Context(), callerID, batchID)
	})
}

// DiscardBatch handles POST /batches/:batchID/discard
func (h *PantryHandler) DiscardBatch(c *gin.Context) {
	h.transition(c, "discard", func(c *gin.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
		return h.pantryService.DiscardBatch(c.Request.Context(), callerID, batchID)
	})
}

// FindFEFO handles GET /fefo?ingredient_id=...
func (h *PantryHandler) FindFEFO(c *gin.Context) {
	callerID := middleware.CallerID(c)

	ingredientID := c.Query("ingredient_id")
	if err := models.ValidateIngredientID(ingredientID); err != nil {
		respondBadRequest(c, err)
		return
	}

	batches, err := h.pantryService.FindFEFO(c.Request.Context(), callerID, ingredientID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	out := make([]*models.BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, models.NewBatchResponse(b))
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredient_id": ingredientID,
		"batches":       out,
	})
}

// FindExpiringSoon handles GET /expiring?within_days=...&storage=...
func (h *PantryHandler) FindExpiringSoon(c *gin.Context) {
	callerID := middleware.CallerID(c)

	withinDays := 3
	if raw := c.Query("within_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_request",
				Message: "within_days must be an integer",
			})
			return
		}
		withinDays = parsed
	}

	storage := c.Query("storage")
	if err := models.ValidateExpiringQuery(withinDays, storage); err != nil {
		respondBadRequest(c, err)
		return
	}

	batches, err := h.pantryService.FindExpiringSoon(c.Request.Context(), callerID,
		withinDays, models.StorageLocation(storage))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"within_days": withinDays,
		"batches":     batches,
	})
}
