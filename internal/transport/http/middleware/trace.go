package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceHeader     = "X-Trace-Id"
	ContextTraceKey = "trace_id"
)

type traceKey struct{}

// Trace reuses the caller's X-Trace-Id or mints one, and echoes it back.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(TraceHeader))
		if traceID == "" {
			traceID = strings.ReplaceAll(uuid.New().String(), "-", "")
		}

		c.Set(ContextTraceKey, traceID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), traceKey{}, traceID))
		c.Header(TraceHeader, traceID)

		c.Next()
	}
}

// TraceID returns the id Trace stored on ctx, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
