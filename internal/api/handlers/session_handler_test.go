package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradersage/bastion/internal/aegis"
	"github.com/tradersage/bastion/internal/api/middleware"
	"github.com/tradersage/bastion/internal/services"
)

func setupSessionHandler() (*SessionHandler, *aegis.Engine, *services.SessionService) {
	engine := aegis.New(aegis.Config{})
	sessions := services.NewSessionService("test-secret")
	return NewSessionHandler(engine, sessions), engine, sessions
}

func TestSessionHandler_Create(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, engine, sessions := setupSessionHandler()

	r := gin.New()
	r.POST("/session", h.Create)

	body, _ := json.Marshal(map[string]string{"tier": "enterprise"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token     string `json:"token"`
		SessionID string `json:"session_id"`
		CSRFToken string `json:"csrf_token"`
		Tier      string `json:"tier"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "enterprise", resp.Tier)

	// Token round-trips through the session service.
	sid, tier, err := sessions.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, sid)
	assert.Equal(t, aegis.TierEnterprise, tier)

	// The CSRF token is bound to the new session.
	assert.True(t, engine.ValidateCSRFToken(sid, resp.CSRFToken))
}

func TestSessionHandler_CreateUnknownTierFallsBackToBasic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, _ := setupSessionHandler()

	r := gin.New()
	r.POST("/session", h.Create)

	body, _ := json.Marshal(map[string]string{"tier": "platinum"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"tier":"basic"`)
}

func TestSessionHandler_CreateEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, _ := setupSessionHandler()

	r := gin.New()
	r.POST("/session", h.Create)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session", nil))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"tier":"basic"`)
}

func TestSessionHandler_RotateCSRF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, engine, _ := setupSessionHandler()

	old, err := engine.GenerateCSRFToken("s1")
	require.NoError(t, err)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.SessionIDKey, "s1")
		c.Next()
	})
	r.POST("/session/csrf", h.RotateCSRF)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session/csrf", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, engine.ValidateCSRFToken("s1", resp.CSRFToken))
	assert.False(t, engine.ValidateCSRFToken("s1", old))
}

func TestSessionHandler_RotateCSRFWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, _ := setupSessionHandler()

	r := gin.New()
	r.POST("/session/csrf", h.RotateCSRF)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session/csrf", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
