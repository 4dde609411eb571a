package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tradersage/bastion/internal/aegis"
)

// Context keys populated by the guard for downstream handlers.
const (
	ClientIdentifierKey = "clientIdentifier"
	ClientTierKey       = "clientTier"
)

// Reputation penalty applied when the WAF flags a request as malicious.
const wafReputationPenalty = 20

// Guard wires the admission-control engine into the request path: penalty-box
// gate first, then the adaptive rate limiter, then the WAF scan. Rejections
// are answered directly; allowed requests proceed with X-RateLimit-* headers
// set and the hashed client identifier stored in the gin context.
func Guard(engine *aegis.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := aegis.ClientIdentifier(c.Request)
		c.Set(ClientIdentifierKey, identifier)

		class, rlContext := classifyPath(c.Request.URL.Path)

		if res := engine.GateRequest(identifier, class); !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		res := engine.CheckRateLimit(identifier, rlContext, aegis.RateLimitOptions{
			Tier:        clientTier(c),
			RequestSize: c.Request.ContentLength,
		})
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		if waf := engine.DetectThreats(aegis.MetadataFromRequest(c.Request)); waf.IsMalicious {
			engine.Penalize(identifier, wafReputationPenalty, aegis.ViolationWAFBlock)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "request blocked"})
			return
		}

		c.Next()
	}
}

// classifyPath maps a request path to its penalty-box class and rate-limit
// context. Sensitive surfaces get the tighter rules.
func classifyPath(path string) (aegis.EndpointClass, string) {
	switch {
	case strings.HasPrefix(path, "/api/v1/session"), strings.HasPrefix(path, "/api/v1/auth"):
		return aegis.ClassAuth, "auth"
	case strings.HasPrefix(path, "/api/v1/signals"), strings.HasPrefix(path, "/api/v1/generate"):
		return aegis.ClassAI, "generate"
	case strings.HasPrefix(path, "/api"):
		return aegis.ClassAPI, "api"
	default:
		return aegis.ClassGeneral, "general"
	}
}

// clientTier reads the tier placed in context by the session middleware,
// defaulting to basic for anonymous traffic.
func clientTier(c *gin.Context) aegis.Tier {
	if v, ok := c.Get(ClientTierKey); ok {
		if tier, ok := v.(aegis.Tier); ok && tier != "" {
			return tier
		}
	}
	return aegis.TierBasic
}
