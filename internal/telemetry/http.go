package telemetry

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPLogger is a gin middleware logging one line per request via slog.
func HTTPLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		l := slog.InfoContext
		if c.Writer.Status() >= 500 {
			l = slog.ErrorContext
		}

		l(c.Request.Context(), "http: request finished",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
