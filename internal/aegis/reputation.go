package aegis

import (
	"sort"
	"sync"
	"time"
)

// Score thresholds applied at read sites. Writes are purely additive and
// never clamped.
const (
	scoreSuspicious = -50
	scoreTrusted    = 50

	maxViolationLog   = 50
	reputationMaxIdle = time.Hour
)

// Violation reasons recorded against an identifier.
const (
	ViolationRateLimit    = "RATE_LIMIT_EXCEEDED"
	ViolationWAFBlock     = "WAF_BLOCK"
	ViolationBadInput     = "MALICIOUS_INPUT"
	ViolationCSRFMismatch = "CSRF_MISMATCH"
)

// Reputation is a point-in-time copy of an identifier's standing.
type Reputation struct {
	Score        int
	LastSeen     time.Time
	Violations   []string
	RequestTimes []time.Time
}

// Suspicious reports whether the score sits below the suspicious threshold.
func (r Reputation) Suspicious() bool { return r.Score < scoreSuspicious }

// Trusted reports whether the score sits above the trusted threshold.
func (r Reputation) Trusted() bool { return r.Score > scoreTrusted }

type reputationEntry struct {
	score        int
	lastSeen     time.Time
	violations   []string
	requestTimes []time.Time
}

// ReputationTracker keeps an additive per-identifier score with a capped
// violation log and a trailing one-hour request history. All methods are
// safe for concurrent use.
type ReputationTracker struct {
	mu      sync.Mutex
	entries map[string]*reputationEntry
	now     func() time.Time
}

// NewReputationTracker returns an empty tracker reading time from now.
func NewReputationTracker(now func() time.Time) *ReputationTracker {
	if now == nil {
		now = time.Now
	}
	return &ReputationTracker{
		entries: make(map[string]*reputationEntry),
		now:     now,
	}
}

// Get returns a copy of the identifier's reputation, or the zero value when
// the identifier has no history. It never mutates the table.
func (t *ReputationTracker) Get(identifier string) Reputation {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[identifier]
	if !ok {
		return Reputation{}
	}
	rep := Reputation{
		Score:        e.score,
		LastSeen:     e.lastSeen,
		Violations:   append([]string(nil), e.violations...),
		RequestTimes: append([]time.Time(nil), e.requestTimes...),
	}
	return rep
}

// Penalize lowers the identifier's score by delta and appends reason to the
// violation log, dropping the oldest entry past the cap.
func (t *ReputationTracker) Penalize(identifier string, delta int, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.touch(identifier)
	e.score -= delta
	e.violations = append(e.violations, reason)
	if len(e.violations) > maxViolationLog {
		e.violations = e.violations[len(e.violations)-maxViolationLog:]
	}
}

// Reward raises the identifier's score by delta.
func (t *ReputationTracker) Reward(identifier string, delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.touch(identifier).score += delta
}

// touch finds or creates the entry, stamps lastSeen, records the request
// time and prunes the trailing window. Callers must hold the lock.
func (t *ReputationTracker) touch(identifier string) *reputationEntry {
	now := t.now()
	e, ok := t.entries[identifier]
	if !ok {
		e = &reputationEntry{}
		t.entries[identifier] = e
	}
	e.lastSeen = now
	e.requestTimes = append(e.requestTimes, now)

	cutoff := now.Add(-time.Hour)
	keep := e.requestTimes[:0]
	for _, ts := range e.requestTimes {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	e.requestTimes = keep
	return e
}

// Sweep drops entries idle for longer than reputationMaxIdle and returns the
// number removed. Keys are snapshotted before deletion.
func (t *ReputationTracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-reputationMaxIdle)
	var stale []string
	for id, e := range t.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(t.entries, id)
	}
	return len(stale)
}

// Len returns the number of tracked identifiers.
func (t *ReputationTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Offender pairs an identifier with its score for report ordering.
type Offender struct {
	Identifier string `json:"identifier"`
	Score      int    `json:"score"`
	Violations int    `json:"violations"`
}

// worstOffenders returns up to n identifiers ordered by ascending score.
func (t *ReputationTracker) worstOffenders(n int) []Offender {
	t.mu.Lock()
	defer t.mu.Unlock()

	all := make([]Offender, 0, len(t.entries))
	for id, e := range t.entries {
		if e.score >= 0 {
			continue
		}
		all = append(all, Offender{Identifier: id, Score: e.score, Violations: len(e.violations)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Score < all[j].Score })
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// violationCounts tallies violation reasons across all tracked identifiers.
func (t *ReputationTracker) violationCounts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range t.entries {
		for _, v := range e.violations {
			counts[v]++
		}
	}
	return counts
}
