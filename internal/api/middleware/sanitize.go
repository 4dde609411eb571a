package middleware

import (
	"net/http"
	"strings"

	"github.com/tradersage/bastion/internal/util"
)

const maxLoggedValueLen = 200

// Headers never logged verbatim: session bearer tokens, cookies, the
// anti-forgery token, and the forwarding headers carrying raw client
// addresses (the engine only ever stores their hashes).
var redactedHeaders = map[string]struct{}{
	"authorization":    {},
	"cookie":           {},
	"set-cookie":       {},
	"x-csrf-token":     {},
	"x-forwarded-for":  {},
	"x-real-ip":        {},
	"cf-connecting-ip": {},
	"x-client-ip":      {},
}

// SanitizeHeaders returns a copy of h safe for logging: redacted headers are
// masked, everything else is stripped of control characters and truncated.
func SanitizeHeaders(h http.Header) map[string][]string {
	if h == nil {
		return nil
	}
	out := make(map[string][]string, len(h))
	for k, vals := range h {
		if _, ok := redactedHeaders[strings.ToLower(k)]; ok {
			out[k] = []string{"<redacted>"}
			continue
		}
		clean := make([]string, 0, len(vals))
		for _, v := range vals {
			clean = append(clean, clip(util.SanitizeForLog(v)))
		}
		out[k] = clean
	}
	return out
}

// SanitizePath prepares a request path for safe logging. The query string is
// dropped entirely; it is where injection payloads usually live.
func SanitizePath(p string) string {
	if i := strings.IndexByte(p, '?'); i != -1 {
		p = p[:i]
	}
	return clip(util.SanitizeForLog(p))
}

func clip(s string) string {
	if len(s) > maxLoggedValueLen {
		return s[:maxLoggedValueLen]
	}
	return s
}
