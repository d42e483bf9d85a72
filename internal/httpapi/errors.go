package httpapi

import (
	"errors"
	"net/http"

	"calltrack/internal/billing"
	"calltrack/internal/calls"
	"calltrack/internal/forwarding"
	"calltrack/internal/numbers"
	"calltrack/internal/reporting"
	"calltrack/internal/whisper"
	"calltrack/pkg/logger"

	"github.com/gin-gonic/gin"
)

// fail maps domain errors to HTTP responses. Validation messages are
// returned to the client; anything unexpected is logged and hidden.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, numbers.ErrInvalidArgument),
		errors.Is(err, forwarding.ErrInvalidArgument),
		errors.Is(err, whisper.ErrInvalidArgument),
		errors.Is(err, whisper.ErrAudioTooLarge),
		errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, billing.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, numbers.ErrNotFound),
		errors.Is(err, forwarding.ErrNotFound),
		errors.Is(err, whisper.ErrNotFound),
		errors.Is(err, calls.ErrNotFound),
		errors.Is(err, billing.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, numbers.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
