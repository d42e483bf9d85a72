package httpapi

import (
	"calltrack/internal/billing"
	"calltrack/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the management API on an already authenticated group.
// Every route acts on the caller's own user id.
func (h Handlers) Register(v1 *gin.RouterGroup) {
	v1.Use(rbac.RequireUser())

	nums := v1.Group("/numbers")
	{
		nums.GET("", h.ListNumbers)
		nums.POST("", h.PurchaseNumber)
		nums.GET("/:id", h.GetNumber)
		nums.PATCH("/:id", h.UpdateNumber)
		nums.DELETE("/:id", h.ReleaseNumber)

		nums.GET("/:id/forwarding", h.GetForwarding)
		nums.PUT("/:id/forwarding", h.PutForwarding)
		nums.DELETE("/:id/forwarding", h.DeleteForwarding)

		nums.GET("/:id/whisper", h.GetWhisper)
		nums.PUT("/:id/whisper", h.PutWhisper)
		nums.DELETE("/:id/whisper", h.DeleteWhisper)
		nums.PUT("/:id/whisper/audio", h.UploadWhisperAudio)
	}

	v1.GET("/calls", h.ListCalls)
	v1.GET("/calls/:sid", h.GetCall)
	v1.POST("/calls", billing.RequireAvailableMinutes(h.Billing), h.StartCall)
	v1.GET("/recordings", h.ListRecordings)

	v1.GET("/usage", h.GetUsage)
	v1.GET("/usage/charges", h.ListCharges)
	v1.GET("/reports/calls", h.CallsReport)
	v1.GET("/audit", h.ListAudit)

	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		admin.POST("/users/:user_id/credit", h.AdminCredit)
	}
}
