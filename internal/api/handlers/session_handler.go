package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradersage/bastion/internal/aegis"
	"github.com/tradersage/bastion/internal/api/middleware"
	"github.com/tradersage/bastion/internal/services"
)

// SessionHandler issues the signed session tokens and their paired
// anti-forgery tokens.
type SessionHandler struct {
	engine   *aegis.Engine
	sessions *services.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(engine *aegis.Engine, sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{engine: engine, sessions: sessions}
}

type createSessionRequest struct {
	Tier string `json:"tier"`
}

var validTiers = map[aegis.Tier]struct{}{
	aegis.TierBasic:      {},
	aegis.TierPremium:    {},
	aegis.TierEnterprise: {},
}

// Create issues a new session token plus the CSRF token bound to it. An
// empty or unknown tier falls back to basic.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	tier := aegis.Tier(req.Tier)
	if _, ok := validTiers[tier]; !ok {
		tier = aegis.TierBasic
	}

	token, sessionID, err := h.sessions.Issue(tier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	csrfToken, err := h.engine.GenerateCSRFToken(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"session_id": sessionID,
		"csrf_token": csrfToken,
		"tier":       string(tier),
	})
}

// RotateCSRF reissues the anti-forgery token for the caller's session.
func (h *SessionHandler) RotateCSRF(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}
	csrfToken, err := h.engine.GenerateCSRFToken(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrf_token": csrfToken})
}
