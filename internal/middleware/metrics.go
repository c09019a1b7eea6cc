package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/retroludo/retrodex/pkg/metrics"
)

// Metrics observes per-route request latency. The route template is the path
// label, so parameterised catalog routes (/api/games/:id/media and friends)
// stay as one series instead of one per entity.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.APILatency.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
