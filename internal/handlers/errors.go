package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
)

// respondError translates domain errors into the uniform error payload.
// Anything outside the domain taxonomy is a 500 and logged with its cause.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	case apperrors.IsForbidden(err):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "forbidden",
			Message: err.Error(),
		})
	case apperrors.IsInvalidState(err):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "invalid_state",
			Message: err.Error(),
		})
	case apperrors.IsInsufficientQuantity(err):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "insufficient_quantity",
			Message: err.Error(),
		})
	case apperrors.IsConflict(err):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
			Details: map[string]interface{}{
				"retryable": apperrors.IsRetryableConflict(err),
			},
		})
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
		})
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		})
	}
}

// respondBadRequest reports malformed input rejected before the service layer.
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}
