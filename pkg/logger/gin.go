package logger

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
	webhookPrefix   = "/webhooks/"
)

// Middleware injects a request-scoped logger (request_id, and call_sid on
// provider webhooks) into both the gin context and the request context, then
// logs a summary line once the handler chain returns.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		if strings.HasPrefix(c.Request.URL.Path, webhookPrefix) {
			if sid := c.PostForm("CallSid"); sid != "" {
				reqLogger = reqLogger.With("call_sid", sid)
			}
		}
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		// Handlers may have attached attributes (user_id) along the way.
		done := FromGin(c)
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			done.Error("request", attrs...)
			return
		}
		done.Info("request", attrs...)
	}
}

// FromGin pulls the request-scoped logger from the gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Attach adds attributes to the request logger for the rest of the chain,
// including services reading it through the request context.
func Attach(c *gin.Context, args ...any) *slog.Logger {
	l := FromGin(c).With(args...)
	c.Set(ginLoggerKey, l)
	c.Request = c.Request.WithContext(With(c.Request.Context(), l))
	return l
}
