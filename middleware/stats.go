package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/seo-engine/backend/logging"
)

// PageURLKey is the context key under which handlers publish the page URL they analyzed
const PageURLKey = "page_url"

// Stats logs every request and feeds the request statistics. Analysis
// requests (POST under /api/) are tracked with their latency and outcome.
func Stats(stats *logging.Statistics, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		stats.TrackVisitor(c.ClientIP())

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()

		if c.Request.Method == http.MethodPost && strings.HasPrefix(c.Request.URL.Path, "/api/") {
			stats.TrackAnalysis(c.GetString(PageURLKey), elapsed, status >= http.StatusInternalServerError)
		}

		event := logger.Info()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
