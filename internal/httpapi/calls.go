package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/scheduler"

	"github.com/gin-gonic/gin"
)

type scheduleRequest struct {
	CampaignID   string     `json:"campaign_id" validate:"required"`
	ProspectID   string     `json:"prospect_id" validate:"required"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	FromNumber   string     `json:"from_number" validate:"omitempty,e164"`
}

// ScheduleCall places one call now, subject to the campaign's gates.
func (h *Handlers) ScheduleCall(c *gin.Context) {
	ctx := c.Request.Context()
	fail := func(code int, msg string) {
		c.AbortWithStatusJSON(code, gin.H{"success": false, "error": msg})
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validation().Struct(req); err != nil {
		fail(http.StatusBadRequest, "campaign_id and prospect_id are required")
		return
	}
	if _, err := h.Campaigns.GetOwned(ctx, actor(c), req.CampaignID); err != nil {
		fail(statusFor(err), errs.Message(err, "internal error"))
		return
	}

	out, err := h.Scheduler.ScheduleCall(ctx, scheduler.ScheduleRequest{
		CampaignID:   req.CampaignID,
		ProspectID:   req.ProspectID,
		ScheduledFor: req.ScheduledFor,
		FromNumber:   req.FromNumber,
	})
	if err != nil {
		fail(statusFor(err), errs.Message(err, "internal error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "scheduledCall": out, "message": out.Message})
}

// ListCalls pages through calls. Non-admin callers must name one of their
// campaigns.
func (h *Handlers) ListCalls(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)

	f := calls.Filter{CampaignID: c.Query("campaign_id"), ProspectID: c.Query("prospect_id")}
	if f.CampaignID == "" && !a.Admin {
		badRequest(c, "campaign_id is required")
		return
	}
	if f.CampaignID != "" {
		if _, err := h.Campaigns.GetOwned(ctx, a, f.CampaignID); err != nil {
			writeError(c, err)
			return
		}
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := calls.ParseStatus(part)
			if err != nil {
				writeError(c, err)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	page := calls.Page{}
	var err error
	if page.Limit, err = queryInt(c, "limit"); err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	if page.Offset, err = queryInt(c, "offset"); err != nil {
		badRequest(c, "offset must be an integer")
		return
	}

	out, err := h.Calls.ListCalls(ctx, f, page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// ownedCall loads a call and checks the caller may see its campaign.
func (h *Handlers) ownedCall(c *gin.Context) (calls.Call, campaigns.Actor, bool) {
	ctx := c.Request.Context()
	a := actor(c)
	call, err := h.Calls.GetCall(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return calls.Call{}, a, false
	}
	if _, err := h.Campaigns.GetOwned(ctx, a, call.CampaignID); err != nil {
		writeError(c, errs.ErrCallNotFound)
		return calls.Call{}, a, false
	}
	return call, a, true
}

func (h *Handlers) GetCall(c *gin.Context) {
	call, _, ok := h.ownedCall(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h *Handlers) RefreshCall(c *gin.Context) {
	call, _, ok := h.ownedCall(c)
	if !ok {
		return
	}
	out, err := h.Calls.RefreshStatus(c.Request.Context(), call.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) CancelCall(c *gin.Context) {
	call, a, ok := h.ownedCall(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	out, err := h.Calls.CancelCall(ctx, call.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if call.Status != out.Status {
		h.recordCall(ctx, audit.EventCallCanceled, a, out.CampaignID, out.ID, "call canceled by operator")
	}
	c.JSON(http.StatusOK, out)
}
