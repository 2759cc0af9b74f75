package httpapi

import (
	"net/http"
	"strings"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/queue"
	"outbound-dialer/internal/scheduler"

	"github.com/gin-gonic/gin"
)

type dispatchRequest struct {
	MaxCalls int  `json:"max_calls" validate:"min=0,max=1000"`
	Async    bool `json:"async"`
}

type retryRequest struct {
	MaxRetries        int      `json:"max_retries" validate:"min=0,max=10"`
	RetryDelayMinutes *int     `json:"retry_delay_minutes" validate:"omitempty,min=0,max=10080"`
	RetryStatuses     []string `json:"retry_statuses" validate:"omitempty,dive,oneof=failed busy no-answer canceled completed"`
	Async             bool     `json:"async"`
}

func (r retryRequest) config() scheduler.RetryConfig {
	def := scheduler.DefaultRetryConfig()
	cfg := scheduler.RetryConfig{MaxRetries: r.MaxRetries, RetryDelayMinutes: def.RetryDelayMinutes}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if r.RetryDelayMinutes != nil {
		cfg.RetryDelayMinutes = *r.RetryDelayMinutes
	}
	for _, s := range r.RetryStatuses {
		cfg.RetryStatuses = append(cfg.RetryStatuses, calls.Status(s))
	}
	if len(cfg.RetryStatuses) == 0 {
		cfg.RetryStatuses = def.RetryStatuses
	}
	return cfg
}

// bindOptional accepts an empty body as the zero value.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid json")
		return false
	}
	return true
}

// DispatchCampaign runs a paced batch for the campaign's pending prospects.
// With async set and a queue configured it enqueues the batch and answers 202.
func (h *Handlers) DispatchCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)

	var req dispatchRequest
	if !bindOptional(c, &req) {
		return
	}
	if err := h.validation().Struct(req); err != nil {
		badRequest(c, "max_calls must be between 0 and 1000")
		return
	}
	camp, err := h.Campaigns.GetOwned(ctx, a, c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), scheduler.BatchResult{Errors: []string{errs.Message(err, "internal error")}})
		return
	}
	limit := req.MaxCalls
	if limit == 0 {
		limit = h.DefaultBatch
	}
	h.recordCampaign(ctx, audit.EventDispatchRequested, a, camp.ID, "batch dispatch requested")

	if req.Async && h.Jobs != nil {
		job, err := h.Jobs.Publish(ctx, queue.Job{Kind: queue.KindDispatch, CampaignID: camp.ID, MaxCalls: limit, RequestedBy: a.UserID})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": true, "job_id": job.ID})
		return
	}

	res := h.Scheduler.ScheduleCampaignCalls(ctx, camp.ID, limit)
	if res.Err != nil {
		c.AbortWithStatusJSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RetryCampaign re-places failed calls. Async behaves as for dispatch.
func (h *Handlers) RetryCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)

	var req retryRequest
	if !bindOptional(c, &req) {
		return
	}
	if err := h.validation().Struct(req); err != nil {
		badRequest(c, "invalid retry configuration")
		return
	}
	camp, err := h.Campaigns.GetOwned(ctx, a, c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), scheduler.RetryResult{Errors: []string{errs.Message(err, "internal error")}})
		return
	}
	cfg := req.config()
	h.recordCampaign(ctx, audit.EventRetryRequested, a, camp.ID,
		"retry requested for "+strings.Join(statusStrings(cfg.RetryStatuses), ","))

	if req.Async && h.Jobs != nil {
		job, err := h.Jobs.Publish(ctx, queue.Job{Kind: queue.KindRetry, CampaignID: camp.ID, Retry: &cfg, RequestedBy: a.UserID})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": true, "job_id": job.ID})
		return
	}

	res := h.Scheduler.RetryFailedCalls(ctx, camp.ID, cfg)
	if res.Err != nil {
		c.AbortWithStatusJSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) ScheduleSummary(c *gin.Context) {
	ctx := c.Request.Context()
	camp, err := h.Campaigns.GetOwned(ctx, actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	sum, err := h.Scheduler.ScheduleSummary(ctx, camp.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func statusStrings(ss []calls.Status) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}
