package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callmonitor/internal/auth"
	"callmonitor/internal/campaigns"
	"callmonitor/internal/compliance"
	"callmonitor/internal/dialer"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth         *auth.Manager
	Orchestrator *dialer.Orchestrator
	Gate         *compliance.Gate
}

// --- Auth ---

type loginRequest struct {
	ActorID        string `json:"actor_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// Login issues an access token.
//
// NOTE: credential validation lives in the identity service; this endpoint
// trusts the internal caller and only mints the token.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ActorID == "" || req.OrganizationID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "actor_id, organization_id, role required"})
		return
	}
	token, err := h.Auth.Issue(time.Now(), req.ActorID, req.OrganizationID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// --- Dialer controls ---

func (h Handlers) StartCampaign(c *gin.Context) {
	if h.Orchestrator == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	actorID, _ := auth.ActorID(c.Request.Context())
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}

	campaign, queued, err := h.Orchestrator.Start(c.Request.Context(), organizationID, campaignID, actorID)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	case errors.Is(err, campaigns.ErrCompleted):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "campaign already completed"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "start failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"campaign": campaign,
		"queued":   queued,
		"started":  campaign.Status == campaigns.StatusActive,
	})
}

func (h Handlers) PauseCampaign(c *gin.Context) {
	if h.Orchestrator == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	actorID, _ := auth.ActorID(c.Request.Context())
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}

	campaign, err := h.Orchestrator.Pause(c.Request.Context(), organizationID, campaignID, actorID)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pause failed"})
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (h Handlers) CampaignStats(c *gin.Context) {
	if h.Orchestrator == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}

	stats, err := h.Orchestrator.Stats(c.Request.Context(), organizationID, campaignID)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// --- Compliance ---

type evaluateRequest struct {
	AccountID   string `json:"account_id,omitempty"`
	PhoneNumber string `json:"phone_number"`
	CampaignID  string `json:"campaign_id,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
}

// EvaluateCompliance runs the gate without dialing. Used by dashboards to
// preview whether a number is currently contactable; the evaluation is
// audited exactly like a pre-dial check.
func (h Handlers) EvaluateCompliance(c *gin.Context) {
	if h.Gate == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "compliance gate not configured"})
		return
	}
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number required"})
		return
	}

	res := h.Gate.Evaluate(c.Request.Context(), compliance.Request{
		OrganizationID: organizationID,
		AccountID:      req.AccountID,
		PhoneNumber:    req.PhoneNumber,
		CampaignID:     req.CampaignID,
		TargetID:       req.TargetID,
	})
	c.JSON(http.StatusOK, res)
}
