package aegis

import (
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// UnknownIdentifier is used when no client address can be derived.
const UnknownIdentifier = "unknown"

// Forwarding headers consulted in order when deriving a client identifier.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"X-Client-IP",
}

// ClientIdentifier derives a non-reversible identifier for the request's
// client. It walks the forwarding headers in order, falls back to the
// socket address and finally to the unknown sentinel, then hashes the raw
// value so raw IPs are never stored in the engine's tables.
func ClientIdentifier(r *http.Request) string {
	raw := firstForwardedHop(r.Header)
	if raw == "" && r.RemoteAddr != "" {
		raw = r.RemoteAddr
		if i := strings.LastIndexByte(raw, ':'); i != -1 {
			raw = raw[:i]
		}
	}
	if raw == "" {
		raw = UnknownIdentifier
	}
	return HashIdentifier(raw)
}

// firstForwardedHop returns the client hop from the forwarding headers, or
// "" when none is set. X-Forwarded-For may carry a chain; the first hop is
// the client.
func firstForwardedHop(h http.Header) string {
	for _, name := range clientIPHeaders {
		v := h.Get(name)
		if v == "" {
			continue
		}
		if i := strings.IndexByte(v, ','); i != -1 {
			v = v[:i]
		}
		return strings.TrimSpace(v)
	}
	return ""
}

// HashIdentifier maps a raw identifier to a short non-reversible key.
func HashIdentifier(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}
