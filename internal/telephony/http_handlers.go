package telephony

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/metrics"
	"outbound-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StatusReconciler applies decoded callbacks. *calls.Reconciler satisfies it.
type StatusReconciler interface {
	ApplyStatus(ctx context.Context, u calls.StatusUpdate) (calls.ReconcileResult, error)
	AttachRecording(ctx context.Context, providerCallID, url, recordingSID string) (calls.Call, error)
}

// TwilioWebhookHandler converts Twilio callbacks to internal types and
// delegates to the reconciler.
//
// Every callback is acknowledged with 200 so Twilio does not retry, except a
// failed signature check which answers 403.
type TwilioWebhookHandler struct {
	Reconciler StatusReconciler

	// AuthToken signs callbacks; checks run only when ValidateSignature is set.
	AuthToken         string
	ValidateSignature bool

	// PublicBaseURL is the origin Twilio used to reach us (proxies rewrite Host).
	PublicBaseURL string
}

func (h TwilioWebhookHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Reconciler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciler not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio status parse failed", "err", err)
		metrics.IncrementWebhook("status", "invalid")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if !h.verify(c) {
		log.Warn("twilio signature rejected", "call_sid", form.CallSid)
		metrics.IncrementWebhook("status", "forbidden")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	res, err := h.Reconciler.ApplyStatus(c.Request.Context(), form.ToStatusUpdate())
	switch {
	case err == nil && res.Duplicate:
		metrics.IncrementWebhook("status", "duplicate")
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
	case err == nil:
		metrics.IncrementWebhook("status", "applied")
		log.Info("call status updated", "call_id", res.Call.ID, "status", res.Call.Status, "duration", res.Call.DurationSeconds)
		c.JSON(http.StatusOK, gin.H{"received": true, "callId": res.Call.ID, "status": res.Call.Status})
	case errors.Is(err, errs.ErrCallNotFound):
		metrics.IncrementWebhook("status", "unknown_call")
		log.Warn("call not found for webhook update", "call_sid", form.CallSid)
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, errs.ErrUnknownStatus), errors.Is(err, errs.ErrInvalidInput):
		metrics.IncrementWebhook("status", "unknown_status")
		log.Warn("webhook ignored", "call_sid", form.CallSid, "status", form.CallStatus, "err", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		metrics.IncrementWebhook("status", "error")
		log.Error("error processing twilio webhook", "call_sid", form.CallSid, "err", err)
		c.JSON(http.StatusOK, gin.H{"received": true, "error": "Internal error processing webhook"})
	}
}

func (h TwilioWebhookHandler) HandleRecording(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Reconciler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciler not configured"})
		return
	}

	form, err := ParseTwilioRecordingCallback(c.Request)
	if err != nil {
		log.Warn("twilio recording parse failed", "err", err)
		metrics.IncrementWebhook("recording", "invalid")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if !h.verify(c) {
		metrics.IncrementWebhook("recording", "forbidden")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	call, err := h.Reconciler.AttachRecording(c.Request.Context(), form.CallSid, form.RecordingURL, form.RecordingSid)
	if err != nil {
		result := "error"
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrInvalidInput) {
			result = "unknown_call"
		}
		metrics.IncrementWebhook("recording", result)
		log.Warn("recording not attached", "call_sid", form.CallSid, "err", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	metrics.IncrementWebhook("recording", "applied")
	c.JSON(http.StatusOK, gin.H{"received": true, "callId": call.ID})
}

// verify expects the request form to be parsed already.
func (h TwilioWebhookHandler) verify(c *gin.Context) bool {
	if !h.ValidateSignature {
		return true
	}
	return ValidTwilioSignature(h.AuthToken, h.requestURL(c), c.Request.PostForm, c.GetHeader("X-Twilio-Signature"))
}

func (h TwilioWebhookHandler) requestURL(c *gin.Context) string {
	if h.PublicBaseURL != "" {
		return strings.TrimRight(h.PublicBaseURL, "/") + c.Request.URL.RequestURI()
	}
	scheme := "https"
	if c.Request.TLS == nil {
		if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
			scheme = fwd
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
