package telephony

import (
	"context"
	"net/http"

	"callmonitor/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AMDRouter consumes carrier webhook events. Implemented by the dialer's
// answer router; defined here so the webhook boundary does not import it.
type AMDRouter interface {
	HandleAMD(ctx context.Context, providerCallID string, result AMDResult) error
	HandleStatus(ctx context.Context, providerCallID, callStatus string, durationSeconds int) error
	HandlePlaybackEnded(ctx context.Context, providerCallID string) error
}

// WebhookHandler converts SignalWire callbacks to internal types and hands
// them to the router.
//
// SignalWire retries webhooks on non-2xx responses, so transient routing
// failures return 500 to get a redelivery; unparseable payloads return 400
// because redelivering them cannot help.
type WebhookHandler struct {
	Router AMDRouter
}

func (h WebhookHandler) HandleAMD(c *gin.Context) {
	log := logger.FromGin(c)

	e, err := ParseAMDEvent(c.Request)
	if err != nil {
		log.Warn("amd webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if err := h.Router.HandleAMD(c.Request.Context(), e.CallSid, e.Result()); err != nil {
		log.Error("amd routing failed", "provider_call_id", e.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h WebhookHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	e, err := ParseStatusEvent(c.Request)
	if err != nil {
		log.Warn("status webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if err := h.Router.HandleStatus(c.Request.Context(), e.CallSid, e.CallStatus, e.CallDuration); err != nil {
		log.Error("status routing failed", "provider_call_id", e.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h WebhookHandler) HandlePlayback(c *gin.Context) {
	log := logger.FromGin(c)

	e, err := ParsePlaybackEvent(c.Request)
	if err != nil {
		log.Warn("playback webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if !e.Ended() {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.Router.HandlePlaybackEnded(c.Request.Context(), e.CallSid); err != nil {
		log.Error("playback routing failed", "provider_call_id", e.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
