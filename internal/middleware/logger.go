package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retroludo/retrodex/pkg/logger"
)

// Logger writes a structured access log per request. Probe endpoints are
// skipped so health checks and metric scrapes do not drown out catalog
// traffic, and the log level follows the response status.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if route := c.FullPath(); route != "" && route != path {
			fields = append(fields, zap.String("route", route))
		}

		httpLog := logger.WithModule("http")
		switch {
		case status >= http.StatusInternalServerError:
			httpLog.Error("request", fields...)
		case status >= http.StatusBadRequest:
			httpLog.Warn("request", fields...)
		default:
			httpLog.Info("request", fields...)
		}
	}
}
