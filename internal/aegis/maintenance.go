package aegis

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepStats reports what one maintenance pass reclaimed.
type SweepStats struct {
	RateLimitEntries  int `json:"rate_limit_entries"`
	GateEntries       int `json:"gate_entries"`
	ReputationEntries int `json:"reputation_entries"`
	CSRFTokens        int `json:"csrf_tokens"`
}

// Sweep runs the three maintenance sweeps once: expired rate-limit windows,
// stale reputation entries and expired CSRF tokens (plus lapsed penalty-box
// entries). Safe to run concurrently with request handling and idempotent.
func (e *Engine) Sweep() SweepStats {
	stats := SweepStats{
		RateLimitEntries:  e.limiter.Sweep(),
		GateEntries:       e.gate.Sweep(),
		ReputationEntries: e.reputation.Sweep(),
		CSRFTokens:        e.csrf.Sweep(),
	}
	if stats != (SweepStats{}) {
		e.log.WithFields(logrus.Fields{
			"rate_limit_entries": stats.RateLimitEntries,
			"gate_entries":       stats.GateEntries,
			"reputation_entries": stats.ReputationEntries,
			"csrf_tokens":        stats.CSRFTokens,
		}).Debug("maintenance sweep reclaimed entries")
	}
	return stats
}

// sweeper schedules periodic maintenance. It is owned by the engine's
// lifecycle: created in New, started by Start, halted by Stop.
type sweeper struct {
	engine   *Engine
	interval time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

func newSweeper(e *Engine, interval time.Duration) *sweeper {
	return &sweeper{engine: e, interval: interval}
}

func (s *sweeper) start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return
	}
	c := cron.New()
	// AddFunc only fails on a malformed spec; @every with a positive
	// interval always parses.
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.engine.Sweep() }); err != nil {
		s.engine.log.WithError(err).Error("schedule maintenance sweep")
		return
	}
	c.Start()
	s.cron = c
}

func (s *sweeper) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
}
