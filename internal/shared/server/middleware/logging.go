package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coverletter-backend/internal/shared/telemetry"
)

// LetterIDKey is set by handlers that act on a single letter.
const LetterIDKey = "letterId"

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"is_guest":    IsGuest(c),
			"client_ip":   c.ClientIP(),
		}
		if letterID := c.GetString(LetterIDKey); letterID != "" {
			fields["letter_id"] = letterID
		}
		if templateID := c.GetString("templateId"); templateID != "" {
			fields["template_id"] = templateID
		}
		telemetry.Info("request.complete", fields)
	}
}
