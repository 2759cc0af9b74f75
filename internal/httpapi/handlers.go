package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/placement"
	"outbound-dialer/internal/queue"
	"outbound-dialer/internal/rbac"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// JobPublisher enqueues campaign work for the worker. *queue.Publisher satisfies it.
type JobPublisher interface {
	Publish(ctx context.Context, j queue.Job) (queue.Job, error)
}

// Auditor records manual actions. *audit.Service satisfies it.
type Auditor interface {
	LogCampaign(ctx context.Context, typ audit.EventType, actor audit.Actor, campaignID, message string) error
	LogCall(ctx context.Context, typ audit.EventType, actor audit.Actor, campaignID, callID, message string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Campaigns *campaigns.Service
	Scheduler *scheduler.Scheduler
	Calls     *placement.Service
	Reporting *reporting.Service

	// Audit and Jobs are optional. Without Jobs, async requests run inline.
	Audit Auditor
	Jobs  JobPublisher

	// DefaultBatch caps a dispatch that does not name max_calls.
	DefaultBatch int

	Log      *slog.Logger
	validate *validator.Validate
}

func (h *Handlers) validation() *validator.Validate {
	if h.validate == nil {
		h.validate = campaigns.NewValidator()
	}
	return h.validate
}

func (h *Handlers) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// actor builds the caller identity from the verified token.
func actor(c *gin.Context) campaigns.Actor {
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	return campaigns.Actor{UserID: uid, Role: role, IP: c.ClientIP(), Admin: rbac.IsSuperAdmin(role)}
}

func auditActor(a campaigns.Actor) audit.Actor {
	return audit.Actor{UserID: a.UserID, Role: a.Role, IP: a.IP}
}

func (h *Handlers) recordCampaign(ctx context.Context, typ audit.EventType, a campaigns.Actor, campaignID, msg string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.LogCampaign(ctx, typ, auditActor(a), campaignID, msg); err != nil {
		h.log().Warn("audit append failed", "type", typ, "campaign_id", campaignID, "err", err)
	}
}

func (h *Handlers) recordCall(ctx context.Context, typ audit.EventType, a campaigns.Actor, campaignID, callID, msg string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.LogCall(ctx, typ, auditActor(a), campaignID, callID, msg); err != nil {
		h.log().Warn("audit append failed", "type", typ, "call_id", callID, "err", err)
	}
}

// Me echoes the verified identity.
func (h *Handlers) Me(c *gin.Context) {
	a := actor(c)
	c.JSON(http.StatusOK, gin.H{"user_id": a.UserID, "role": a.Role, "admin": a.Admin})
}

// Register mounts every /v1 route on g. g must already run
// auth.RequireAccessToken.
func (h *Handlers) Register(g *gin.RouterGroup) {
	read := rbac.RequireAnyRole(rbac.ReadRoles...)
	operate := rbac.RequireAnyRole(rbac.OperateRoles...)
	manage := rbac.RequireAnyRole(rbac.ManageRoles...)

	g.GET("/me", h.Me)

	cg := g.Group("/campaigns")
	{
		cg.GET("", read, h.ListCampaigns)
		cg.POST("", manage, h.CreateCampaign)
		cg.GET("/:id", read, h.GetCampaign)
		cg.POST("/:id/launch", manage, h.LaunchCampaign)
		cg.POST("/:id/pause", manage, h.PauseCampaign)
		cg.POST("/:id/complete", manage, h.CompleteCampaign)

		cg.GET("/:id/prospects", read, h.ListProspects)
		cg.POST("/:id/prospects", manage, h.AddProspect)

		cg.GET("/:id/summary", read, h.ScheduleSummary)
		cg.GET("/:id/stats", read, h.CallStats)
		cg.GET("/:id/conversions", read, h.ConversionMetrics)

		cg.POST("/:id/dispatch", operate, h.DispatchCampaign)
		cg.POST("/:id/retry", operate, h.RetryCampaign)
	}

	calls := g.Group("/calls")
	{
		calls.POST("/schedule", operate, h.ScheduleCall)
		calls.GET("", read, h.ListCalls)
		calls.GET("/:id", read, h.GetCall)
		calls.POST("/:id/refresh", operate, h.RefreshCall)
		calls.POST("/:id/cancel", operate, h.CancelCall)
	}
}
