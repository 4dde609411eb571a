package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradersage/bastion/internal/aegis"
)

// CSRFTokenHeader carries the anti-forgery token on mutating requests.
const CSRFTokenHeader = "X-CSRF-Token"

// Paths exempt from the CSRF check: the session endpoint is where a client
// obtains its first token, so it cannot present one yet.
var csrfExemptPaths = map[string]struct{}{
	"/api/v1/session": {},
}

// CSRF enforces the per-session anti-forgery token on mutating methods.
// Anonymous requests (no session) are rejected too: a mutating call must
// carry both a session and the token issued for it.
func CSRF(engine *aegis.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if _, exempt := csrfExemptPaths[c.Request.URL.Path]; exempt {
			c.Next()
			return
		}

		sid, ok := GetSessionID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "session required"})
			return
		}
		token := c.GetHeader(CSRFTokenHeader)
		if token == "" || !engine.ValidateCSRFToken(sid, token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}
