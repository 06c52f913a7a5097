package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// IdempotencyKeyHeader carries the client-chosen retry key.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyMiddleware replays stored responses for retried requests
type IdempotencyMiddleware struct {
	idempotency service.IdempotencyService
	logger      *slog.Logger
}

// NewIdempotencyMiddleware creates a new idempotency middleware
func NewIdempotencyMiddleware(idempotency service.IdempotencyService, logger *slog.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		idempotency: idempotency,
		logger:      logger,
	}
}

// responseRecorder captures the response body while writing it through.
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Guard makes the wrapped endpoint at-most-once per (key, caller, body)
// tuple. The Idempotency-Key header is mandatory; retries with a matching
// body replay the first response verbatim, retries with a different body are
// rejected and never executed.
func (m *IdempotencyMiddleware) Guard(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "missing_idempotency_key",
				"message": "Idempotency-Key header is required",
			})
			c.Abort()
			return
		}

		callerID := CallerID(c)

		// Path parameters are part of the operation identity: the same key
		// and body against another session or step is a different operation,
		// never a replay of the first one.
		scope := endpoint + " " + c.Request.URL.Path

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "unreadable_body",
				"message": "failed to read request body",
			})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		bodyHash := models.HashRequestBody(body)

		cached, err := m.idempotency.Check(c.Request.Context(), key, callerID, scope, bodyHash)
		if err != nil {
			if apperrors.IsConflict(err) {
				c.JSON(http.StatusConflict, gin.H{
					"error":   "idempotency_conflict",
					"message": err.Error(),
				})
				c.Abort()
				return
			}
			// The guard must not turn a storage hiccup into a failed
			// operation; fall through and execute.
			m.logger.Warn("idempotency check failed, executing anyway",
				"endpoint", endpoint, "error", err)
		}

		if cached != nil {
			c.Data(cached.Status, "application/json", cached.Body)
			c.Abort()
			return
		}

		recorder := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			// Server faults are not an outcome; the client retry should
			// execute again.
			return
		}

		if err := m.idempotency.Store(c.Request.Context(), key, callerID, scope,
			bodyHash, status, recorder.body.Bytes(), models.DefaultIdempotencyTTL); err != nil {
			m.logger.Warn("failed to store idempotency record",
				"endpoint", endpoint, "error", err)
		}
	}
}
