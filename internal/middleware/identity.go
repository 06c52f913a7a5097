package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CallerIDHeader carries the authenticated caller identity, set by the API
// gateway in front of this service.
const CallerIDHeader = "X-User-ID"

const callerContextKey = "caller_id"

// RequireCaller rejects requests without a caller identity. All owner-scoped
// endpoints sit behind this middleware.
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID := c.GetHeader(CallerIDHeader)
		if callerID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_caller",
				"message": "X-User-ID header is required",
			})
			c.Abort()
			return
		}

		c.Set(callerContextKey, callerID)
		c.Next()
	}
}

// CallerID returns the caller identity set by RequireCaller.
func CallerID(c *gin.Context) string {
	return c.GetString(callerContextKey)
}
