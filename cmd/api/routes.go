package main

import (
	"database/sql"
	"net/http"
	"time"

	"callmonitor/internal/httpapi"
	"callmonitor/internal/rbac"
	"callmonitor/internal/telephony"
	"callmonitor/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	authMW   gin.HandlerFunc
	handlers httpapi.Handlers
	webhooks telephony.WebhookHandler

	db  *sql.DB
	rdb *redis.Client
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := deps.rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Carrier webhooks (public).
	// NOTE: protect with SignalWire signature validation in production.
	wh := r.Group("/webhooks/signalwire")
	{
		wh.POST("/amd", deps.webhooks.HandleAMD)
		wh.POST("/status", deps.webhooks.HandleStatus)
		wh.POST("/playback", deps.webhooks.HandlePlayback)
	}

	r.POST("/auth/login", deps.handlers.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	{
		// Dialer controls.
		dialerGroup := v1.Group("/dialer/campaigns")
		dialerGroup.Use(rbac.RequireOrganization())
		dialerGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSuperAdmin))
		{
			dialerGroup.POST("/:campaign_id/start", deps.handlers.StartCampaign)
			dialerGroup.POST("/:campaign_id/pause", deps.handlers.PauseCampaign)
		}

		// Stats are readable by analysts as well.
		statsGroup := v1.Group("/dialer/campaigns")
		statsGroup.Use(rbac.RequireOrganization())
		statsGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleCompliance, rbac.RoleSuperAdmin))
		{
			statsGroup.GET("/:campaign_id/stats", deps.handlers.CampaignStats)
		}

		// Manual-dial pre-flight; open to every authenticated role.
		complianceGroup := v1.Group("/compliance")
		complianceGroup.Use(rbac.RequireOrganization())
		{
			complianceGroup.POST("/evaluate", deps.handlers.EvaluateCompliance)
		}
	}
}
