package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/julienmessagingme/newdevis-sub000/pkg/logger"
)

// RequestID tags every request with an ID so one verification can be traced
// from upload to verdict across log lines. A caller-provided X-Request-ID is
// kept; anything else gets a fresh UUID. The ID is echoed in the response
// header and placed on the request context for the context-aware logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		c.Header("X-Request-ID", id)
		c.Set("request_id", id)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the ID set by RequestID, empty if the middleware did
// not run.
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get("request_id"); ok {
		return id.(string)
	}
	return ""
}
