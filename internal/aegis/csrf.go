package aegis

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	csrfTTL        = time.Hour
	csrfTokenBytes = 24
)

type csrfEntry struct {
	token     string
	expiresAt time.Time
}

// CSRFManager issues and validates per-session anti-forgery tokens. One
// token is active per session; regenerating overwrites it.
type CSRFManager struct {
	mu       sync.Mutex
	sessions map[string]csrfEntry
	now      func() time.Time
}

// NewCSRFManager returns an empty manager reading time from now.
func NewCSRFManager(now func() time.Time) *CSRFManager {
	if now == nil {
		now = time.Now
	}
	return &CSRFManager{sessions: make(map[string]csrfEntry), now: now}
}

// Issue creates a fresh token for the session, replacing any existing one.
// The only failure mode is the platform RNG being unavailable.
func (m *CSRFManager) Issue(sessionID string) (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := hex.EncodeToString(buf)

	m.mu.Lock()
	m.sessions[sessionID] = csrfEntry{token: token, expiresAt: m.now().Add(csrfTTL)}
	m.mu.Unlock()

	return token, nil
}

// Validate reports whether presented matches the session's live token.
// Expired entries are deleted on sight.
func (m *CSRFManager) Validate(sessionID, presented string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.sessions, sessionID)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(e.token), []byte(presented)) == 1
}

// Sweep drops expired entries and returns the number removed.
func (m *CSRFManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var stale []string
	for sid, e := range m.sessions {
		if !now.Before(e.expiresAt) {
			stale = append(stale, sid)
		}
	}
	for _, sid := range stale {
		delete(m.sessions, sid)
	}
	return len(stale)
}

// ActiveCount returns the number of live, unexpired tokens.
func (m *CSRFManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, e := range m.sessions {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
