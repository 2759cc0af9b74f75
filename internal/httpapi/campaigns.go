package httpapi

import (
	"net/http"

	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/errs"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) ListCampaigns(c *gin.Context) {
	status := campaigns.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "unknown campaign status")
		return
	}
	list, err := h.Campaigns.List(c.Request.Context(), actor(c), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": list})
}

func (h *Handlers) CreateCampaign(c *gin.Context) {
	var in campaigns.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid json")
		return
	}
	out, err := h.Campaigns.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handlers) GetCampaign(c *gin.Context) {
	out, err := h.Campaigns.GetOwned(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) transition(c *gin.Context, op func(a campaigns.Actor, id string) (campaigns.Campaign, error), msg string) {
	out, err := op(actor(c), c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), gin.H{"success": false, "error": errs.Message(err, "internal error")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "campaign": out})
}

func (h *Handlers) LaunchCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	h.transition(c, func(a campaigns.Actor, id string) (campaigns.Campaign, error) {
		return h.Campaigns.Launch(ctx, a, id)
	}, "Campaign launched successfully")
}

func (h *Handlers) PauseCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	h.transition(c, func(a campaigns.Actor, id string) (campaigns.Campaign, error) {
		return h.Campaigns.Pause(ctx, a, id)
	}, "Campaign paused successfully")
}

func (h *Handlers) CompleteCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	h.transition(c, func(a campaigns.Actor, id string) (campaigns.Campaign, error) {
		return h.Campaigns.Complete(ctx, a, id)
	}, "Campaign completed")
}

func (h *Handlers) ListProspects(c *gin.Context) {
	ctx := c.Request.Context()
	camp, err := h.Campaigns.GetOwned(ctx, actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	status := campaigns.ProspectStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "unknown prospect status")
		return
	}
	list, err := h.Campaigns.ListProspects(ctx, camp.ID, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prospects": list})
}

func (h *Handlers) AddProspect(c *gin.Context) {
	var in campaigns.ProspectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid json")
		return
	}
	out, err := h.Campaigns.AddProspect(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
