package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"ragqa/internal/config"
	"ragqa/internal/logger"
	"ragqa/internal/metrics"
)

const (
	HeaderRequestID = "X-Request-ID"
	// DefaultMaxBodyBytes applies when the configured limit is not positive.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Headers set on every response.
var corsHeaders = [][2]string{
	{"Content-Type", "application/json"},
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "OPTIONS,POST,GET"},
	{"Access-Control-Allow-Headers", "content-type"},
}

// CORSMiddleware sets the JSON and CORS headers and answers preflight
// requests on any path with 204.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range corsHeaders {
			h.Set(kv[0], kv[1])
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// BodySizeMiddleware caps how many request body bytes handlers may read.
func BodySizeMiddleware(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// RequestIDMiddleware propagates or assigns a request id and attaches a
// request-scoped logger to the request context.
func RequestIDMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(HeaderRequestID, id)
		reqLog := log.With("request_id", id)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), reqLog))
		c.Next()
	}
}

// LoggerMiddleware logs HTTP request details and records request latency.
func LoggerMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveHTTP(route, c.Request.Method, status, latency)
		log := logger.FromContext(c.Request.Context())
		log.Info("Request completed",
			"latency", latency,
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"status_code", status,
			"body_size", c.Writer.Size(),
			"path", path,
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

// RateLimitMiddleware throttles clients by IP with an in-process store.
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	rate := limiter.Rate{Period: cfg.Period, Limit: cfg.Limit}
	instance := limiter.New(memory.NewStore(), rate)
	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			writeJSON(c, http.StatusTooManyRequests, errorResponse{Error: "Too Many Requests"})
			c.Abort()
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			logger.FromContext(c.Request.Context()).Error("rate limiter failed", "error", err)
			c.Next()
		}),
	)
}
