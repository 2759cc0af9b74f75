package httpapi

import (
	"net/http"
	"time"

	"outbound-dialer/internal/reporting"

	"github.com/gin-gonic/gin"
)

// statsRequest reads from/to as RFC 3339 query parameters.
func (h *Handlers) statsRequest(c *gin.Context) (reporting.StatsRequest, bool) {
	camp, err := h.Campaigns.GetOwned(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return reporting.StatsRequest{}, false
	}
	req := reporting.StatsRequest{CampaignID: camp.ID}
	for key, dst := range map[string]*time.Time{"from": &req.Range.From, "to": &req.Range.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, key+" must be an RFC 3339 timestamp")
			return reporting.StatsRequest{}, false
		}
		*dst = t
	}
	return req, true
}

func (h *Handlers) CallStats(c *gin.Context) {
	req, ok := h.statsRequest(c)
	if !ok {
		return
	}
	out, err := h.Reporting.CallStats(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) ConversionMetrics(c *gin.Context) {
	req, ok := h.statsRequest(c)
	if !ok {
		return
	}
	out, err := h.Reporting.ConversionMetrics(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
