package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"agentsvc/internal/logging"
	"agentsvc/internal/observability"
	"agentsvc/internal/utils/id"
)

const (
	requestIDHeader = "X-Request-ID"
	runIDHeader     = "X-Run-ID"
	maxRequestIDLen = 128
)

// RequestIDMiddleware echoes a caller supplied X-Request-ID or generates one,
// and stores it on the request context.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = id.NewRequestID()
		}
		c.Request = c.Request.WithContext(id.WithRequestID(c.Request.Context(), requestID))
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// CORSMiddleware allows the configured front-end origins with credentials.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader, runIDHeader}
	return cors.New(corsConfig)
}

// ObservabilityMiddleware instruments requests with a span, metrics and an
// access log line.
func ObservabilityMiddleware(obs *observability.Observability, accessLogger logging.Logger) gin.HandlerFunc {
	accessLogger = logging.OrNop(accessLogger)
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		var tracer *observability.TracerProvider
		if obs != nil {
			tracer = obs.Tracer
		}
		ctx, span := tracer.StartSpan(ctx, observability.SpanHTTPServer,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.target", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		var spanErr error
		if status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("HTTP %d", status)
		}
		observability.EndSpan(span, spanErr)

		if obs != nil {
			obs.Metrics.RecordHTTPRequest(ctx, c.Request.Method, route, status, latency)
		}
		accessLogger.Info("request_id=%s route=%s method=%s status=%d latency_ms=%.2f bytes=%d",
			id.RequestIDFromContext(ctx),
			route,
			c.Request.Method,
			status,
			float64(latency.Microseconds())/1000.0,
			c.Writer.Size(),
		)
	}
}

// RecoveryMiddleware turns a handler panic into a 500 envelope.
func RecoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		msg := "internal server error"
		c.AbortWithStatusJSON(http.StatusInternalServerError, AgentResponse{Success: false, Error: &msg})
	})
}
