package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger writes one line per request. Websocket upgrades and metric scrapes
// are logged at debug level.
func Logger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		ev := logger.Info()
		switch {
		case len(c.Errors) > 0:
			ev = logger.Error().Str("errors", c.Errors.String())
		case strings.HasPrefix(path, "/ws/") || path == "/metrics":
			ev = logger.Debug()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}
