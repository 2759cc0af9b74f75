package main

import (
	"net/http"
	"time"

	"outbound-dialer/internal/app"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/httpapi"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps *app.App) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks (public, optionally signature checked).
	{
		h := telephony.TwilioWebhookHandler{
			Reconciler:        deps.Reconciler,
			AuthToken:         deps.Config.Telephony.AuthToken,
			ValidateSignature: deps.Config.Telephony.ValidateSignature,
			PublicBaseURL:     deps.Config.App.BaseURL,
		}
		hooks := r.Group("/api/webhooks")
		hooks.POST("/twilio", h.HandleStatus)
		hooks.POST("/twilio/recording", h.HandleRecording)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.Tokens))
	{
		h := &httpapi.Handlers{
			Campaigns:    deps.Campaigns,
			Scheduler:    deps.Scheduler,
			Calls:        deps.Placement,
			Reporting:    deps.Reporting,
			Audit:        deps.Audit,
			DefaultBatch: deps.Config.Scheduler.BatchSize,
			Log:          deps.Log,
		}
		if deps.Publisher != nil {
			h.Jobs = deps.Publisher
		}
		h.Register(v1)
	}
}
