package aegis

import (
	"math"
	"sync"
	"time"
)

// Tier identifies a subscription level with its own base rate limits.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

type tierLimit struct {
	maxRequests int
	window      time.Duration
}

// Base limits per tier. Unknown tiers fall back to basic.
var tierTable = map[Tier]tierLimit{
	TierBasic:      {maxRequests: 60, window: time.Minute},
	TierPremium:    {maxRequests: 180, window: time.Minute},
	TierEnterprise: {maxRequests: 600, window: time.Minute},
}

// Context multipliers tighten limits on sensitive endpoints. Missing
// contexts use 1.0. Products are truncated toward zero.
var contextMultipliers = map[string]float64{
	"auth":     0.3,
	"generate": 0.5,
	"api":      0.8,
}

// Reputation and payload-size adjustment factors.
const (
	suspiciousLimitFactor  = 0.3
	suspiciousWindowFactor = 2
	trustedLimitFactor     = 1.5
	oversizeLimitFactor    = 0.5

	rateLimitPenalty = 10
)

// RateLimitResult is the adaptive limiter's decision for one request.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetTime  time.Time `json:"reset_time"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, zero when allowed
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
	resetTime   time.Time
	window      time.Duration
	violations  int
}

// Limiter is the adaptive sliding-window rate limiter. Limits are sized per
// request from tier, context, reputation and payload size. Entries are
// created lazily and reclaimed by the maintenance sweep after prolonged
// inactivity.
type Limiter struct {
	mu              sync.Mutex
	entries         map[string]*rateLimitEntry
	reputation      *ReputationTracker
	maxPayloadBytes int64
	now             func() time.Time
}

// NewLimiter returns an adaptive limiter consulting the given tracker.
func NewLimiter(reputation *ReputationTracker, maxPayloadBytes int64, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		entries:         make(map[string]*rateLimitEntry),
		reputation:      reputation,
		maxPayloadBytes: maxPayloadBytes,
		now:             now,
	}
}

// Check admits or rejects one request for (identifier, context). It never
// fails; every call returns a decision.
func (l *Limiter) Check(identifier, context string, tier Tier, requestSize int64) RateLimitResult {
	base, ok := tierTable[tier]
	if !ok {
		base = tierTable[TierBasic]
	}

	maxRequests := base.maxRequests
	window := base.window

	if mult, ok := contextMultipliers[context]; ok {
		maxRequests = int(float64(maxRequests) * mult)
	}

	rep := l.reputation.Get(identifier)
	switch {
	case rep.Suspicious():
		maxRequests = int(float64(maxRequests) * suspiciousLimitFactor)
		window *= suspiciousWindowFactor
	case rep.Trusted():
		maxRequests = int(float64(maxRequests) * trustedLimitFactor)
	}

	if l.maxPayloadBytes > 0 && requestSize > l.maxPayloadBytes {
		maxRequests = int(float64(maxRequests) * oversizeLimitFactor)
	}
	if maxRequests < 1 {
		maxRequests = 1
	}

	now := l.now()

	l.mu.Lock()
	key := context + ":" + identifier
	e, ok := l.entries[key]
	if !ok {
		e = &rateLimitEntry{windowStart: now, resetTime: now.Add(window), window: window}
		l.entries[key] = e
	}
	if !now.Before(e.resetTime) {
		e.count = 0
		e.windowStart = now
		e.resetTime = now.Add(window)
		e.window = window
	}
	e.count++
	count := e.count
	resetTime := e.resetTime
	if count > maxRequests {
		e.violations++
	}
	l.mu.Unlock()

	if count > maxRequests {
		l.reputation.Penalize(identifier, rateLimitPenalty, ViolationRateLimit)
		return RateLimitResult{
			Allowed:    false,
			Limit:      maxRequests,
			Remaining:  0,
			ResetTime:  resetTime,
			RetryAfter: int(math.Ceil(resetTime.Sub(now).Seconds())),
		}
	}

	return RateLimitResult{
		Allowed:   true,
		Limit:     maxRequests,
		Remaining: maxRequests - count,
		ResetTime: resetTime,
	}
}

// Sweep drops entries whose window has been expired for longer than the
// window length itself. Returns the number removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var stale []string
	for key, e := range l.entries {
		if now.Sub(e.resetTime) > e.window {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(l.entries, key)
	}
	return len(stale)
}

// Len returns the number of live rate-limit entries.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// EndpointClass groups endpoints under one coarse fixed-window rule.
type EndpointClass string

const (
	ClassAPI     EndpointClass = "api"
	ClassAI      EndpointClass = "ai"
	ClassAuth    EndpointClass = "auth"
	ClassGeneral EndpointClass = "general"
)

type gateRule struct {
	window      time.Duration
	maxRequests int
	blockFor    time.Duration
}

// Fixed-window rules per endpoint class.
var gateRules = map[EndpointClass]gateRule{
	ClassAPI:     {window: time.Minute, maxRequests: 120, blockFor: 5 * time.Minute},
	ClassAI:      {window: time.Minute, maxRequests: 30, blockFor: 10 * time.Minute},
	ClassAuth:    {window: time.Minute, maxRequests: 10, blockFor: 15 * time.Minute},
	ClassGeneral: {window: time.Minute, maxRequests: 300, blockFor: 2 * time.Minute},
}

// GateResult is the penalty-box gate's decision for one request.
type GateResult struct {
	Allowed      bool      `json:"allowed"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	RetryAfter   int       `json:"retry_after,omitempty"` // seconds, zero when allowed
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

type gateEntry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Gate is the fixed-window penalty-box limiter used for coarse endpoint
// classes. Exceeding a class limit blocks the identifier for the class's
// block duration regardless of window resets.
type Gate struct {
	mu      sync.Mutex
	entries map[string]*gateEntry
	now     func() time.Time
}

// NewGate returns an empty penalty-box gate.
func NewGate(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{entries: make(map[string]*gateEntry), now: now}
}

// Allow admits or refuses one request for (identifier, class).
func (g *Gate) Allow(identifier string, class EndpointClass) GateResult {
	rule, ok := gateRules[class]
	if !ok {
		rule = gateRules[ClassGeneral]
	}

	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	key := string(class) + ":" + identifier
	e, ok := g.entries[key]
	if !ok {
		e = &gateEntry{windowStart: now}
		g.entries[key] = e
	}

	if now.Before(e.blockedUntil) {
		return GateResult{
			Allowed:      false,
			Limit:        rule.maxRequests,
			RetryAfter:   int(math.Ceil(e.blockedUntil.Sub(now).Seconds())),
			BlockedUntil: e.blockedUntil,
		}
	}

	if now.Sub(e.windowStart) >= rule.window {
		e.windowStart = now
		e.count = 0
	}
	e.count++
	if e.count > rule.maxRequests {
		e.blockedUntil = now.Add(rule.blockFor)
		return GateResult{
			Allowed:      false,
			Limit:        rule.maxRequests,
			RetryAfter:   int(math.Ceil(rule.blockFor.Seconds())),
			BlockedUntil: e.blockedUntil,
		}
	}

	return GateResult{
		Allowed:   true,
		Limit:     rule.maxRequests,
		Remaining: rule.maxRequests - e.count,
	}
}

// Sweep drops entries whose block has lapsed and whose window is long past.
func (g *Gate) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	var stale []string
	for key, e := range g.entries {
		if now.After(e.blockedUntil) && now.Sub(e.windowStart) > 10*time.Minute {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(g.entries, key)
	}
	return len(stale)
}

// Len returns the number of live gate entries.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
