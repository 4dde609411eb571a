package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tradersage/bastion/internal/services"
)

// SessionIDKey is the gin context key holding the parsed session id.
const SessionIDKey = "sessionID"

// Session parses an optional bearer token and stores the session id and tier
// in the gin context. Requests without a token pass through anonymously;
// requests with a bad token are not rejected here, they just stay anonymous.
// Handlers that need a session check for SessionIDKey themselves.
func Session(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
			if sid, tier, err := sessions.Parse(token); err == nil {
				c.Set(SessionIDKey, sid)
				c.Set(ClientTierKey, tier)
			}
		}
		c.Next()
	}
}

// GetSessionID returns the session id placed in context by Session, if any.
func GetSessionID(c *gin.Context) (string, bool) {
	if v, ok := c.Get(SessionIDKey); ok {
		if sid, ok := v.(string); ok && sid != "" {
			return sid, true
		}
	}
	return "", false
}
