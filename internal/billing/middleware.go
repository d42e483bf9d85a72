package billing

import (
	"context"
	"net/http"

	"calltrack/internal/auth"
	"calltrack/internal/rbac"
	"calltrack/pkg/logger"

	"github.com/gin-gonic/gin"
)

// UsageReader is the minimal billing surface needed by middleware.
type UsageReader interface {
	Summary(ctx context.Context, userID string) (Summary, error)
}

// RequireAvailableMinutes blocks billable actions (placing a recorded call)
// once the user has neither free minutes nor balance left. admin bypasses.
func RequireAvailableMinutes(svc UsageReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := auth.Role(c.Request.Context())
		if rbac.IsAdmin(role) {
			c.Next()
			return
		}

		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
			return
		}

		sum, err := svc.Summary(c.Request.Context(), userID)
		if err != nil {
			logger.FromGin(c).Error("usage lookup failed", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage lookup failed"})
			return
		}
		if sum.TotalMinutesAvailable <= 0 {
			// 402 Payment Required is semantically appropriate.
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "no minutes available"})
			return
		}
		c.Next()
	}
}
