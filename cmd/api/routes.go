package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"calltrack/internal/httpapi"
	"calltrack/internal/telephony"
	"calltrack/internal/webhooks"
	"calltrack/pkg/metrics"
	"calltrack/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	DB       *sql.DB
	Metrics  *metrics.Metrics
	Provider telephony.Provider
	AuthMW   gin.HandlerFunc
	Webhooks webhooks.Handlers
	API      httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", healthz(func(ctx context.Context) error {
		return utils.HealthCheck(ctx, d.DB, 2*time.Second)
	}, d.Provider))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	d.Webhooks.Register(r)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.AuthMW)
	d.API.Register(v1)
}

// healthz fails hard only when the database is down. A carrier outage keeps
// the instance serving (reads and reports still work) and is reported as
// degraded under the provider's name.
func healthz(dbCheck func(context.Context) error, provider telephony.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := dbCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		if provider != nil {
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := provider.HealthCheck(pctx); err != nil {
				c.JSON(http.StatusOK, gin.H{"status": "degraded", "provider": provider.Name(), "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
