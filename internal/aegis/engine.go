// Package aegis is the request admission-control and threat-detection
// engine: adaptive and penalty-box rate limiting informed by per-identifier
// reputation, signature-based request and input classification, and
// anti-forgery token lifecycle. The engine owns all of its mutable state;
// nothing outside this package mutates its tables.
package aegis

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradersage/bastion/internal/aegis/patterns"
	"github.com/tradersage/bastion/internal/logger"
	"github.com/tradersage/bastion/internal/metrics"
)

// EventRecord describes one security rejection for the audit trail.
type EventRecord struct {
	Source     string
	Action     string
	Identifier string
	Context    string
	Threats    []string
	RiskScore  int
	Details    string
}

// EventSink receives rejection records. Implementations must not block the
// calling request path; persistence failures are theirs to log.
type EventSink interface {
	Record(event EventRecord)
}

// Config tunes a new engine. Zero values fall back to defaults.
type Config struct {
	// MaxPayloadBytes caps request/input size before risk is added.
	MaxPayloadBytes int64
	// SweepInterval is the maintenance period. Default 5 minutes.
	SweepInterval time.Duration
	// BotDetection toggles user-agent scanning in the WAF.
	BotDetection bool
	// Now supplies the clock; tests inject a fake. Default time.Now.
	Now func() time.Time
	// Sink, when set, receives every rejection for auditing.
	Sink EventSink
}

// Engine is the explicitly constructed admission-control service. Construct
// one per process (or per test) with New and share it by handle.
type Engine struct {
	catalog    *patterns.Catalog
	reputation *ReputationTracker
	limiter    *Limiter
	gate       *Gate
	detector   *Detector
	validator  *Validator
	csrf       *CSRFManager

	sink  EventSink
	sweep *sweeper
	log   *logrus.Entry

	mu      sync.Mutex
	total   uint64
	blocked uint64
}

// New builds an engine and all of its components. The maintenance sweeper
// is created but not started; call Start.
func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 1 << 20
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}

	catalog := patterns.Default()
	reputation := NewReputationTracker(cfg.Now)

	e := &Engine{
		catalog:    catalog,
		reputation: reputation,
		limiter:    NewLimiter(reputation, cfg.MaxPayloadBytes, cfg.Now),
		gate:       NewGate(cfg.Now),
		detector:   NewDetector(catalog, cfg.MaxPayloadBytes, cfg.BotDetection),
		validator:  NewValidator(catalog, cfg.MaxPayloadBytes),
		csrf:       NewCSRFManager(cfg.Now),
		sink:       cfg.Sink,
		log:        logger.WithComponent("aegis"),
	}
	e.sweep = newSweeper(e, cfg.SweepInterval)
	return e
}

// Start launches the background maintenance sweeper.
func (e *Engine) Start() { e.sweep.start() }

// Stop halts the background maintenance sweeper. Idempotent.
func (e *Engine) Stop() { e.sweep.stop() }

// RateLimitOptions carries the optional inputs to CheckRateLimit.
type RateLimitOptions struct {
	Tier        Tier
	RequestSize int64
}

// CheckRateLimit admits or rejects one request under the adaptive limiter.
// It never fails; every call returns a decision.
func (e *Engine) CheckRateLimit(identifier, context string, opts RateLimitOptions) RateLimitResult {
	res := e.limiter.Check(identifier, context, opts.Tier, opts.RequestSize)
	e.count(res.Allowed)
	if !res.Allowed {
		metrics.IncRateLimitRejected()
		e.log.WithFields(logrus.Fields{
			"identifier":  identifier,
			"context":     context,
			"limit":       res.Limit,
			"retry_after": res.RetryAfter,
		}).Warn("rate limit exceeded")
		e.record(EventRecord{
			Source:     "ratelimit",
			Action:     "reject",
			Identifier: identifier,
			Context:    context,
			Threats:    []string{ViolationRateLimit},
		})
	}
	return res
}

// GateRequest admits or refuses one request under the coarse penalty-box
// gate for the given endpoint class.
func (e *Engine) GateRequest(identifier string, class EndpointClass) GateResult {
	res := e.gate.Allow(identifier, class)
	e.count(res.Allowed)
	if !res.Allowed {
		metrics.IncPenaltyBoxBlocked()
		e.log.WithFields(logrus.Fields{
			"identifier":    identifier,
			"class":         string(class),
			"blocked_until": res.BlockedUntil,
		}).Warn("identifier blocked by penalty box")
		e.record(EventRecord{
			Source:     "penaltybox",
			Action:     "block",
			Identifier: identifier,
			Context:    string(class),
			Threats:    []string{ViolationRateLimit},
		})
	}
	return res
}

// DetectThreats scans request metadata against the signature catalog. The
// scan itself is pure; the engine layer adds bookkeeping and auditing.
func (e *Engine) DetectThreats(meta RequestMetadata) WAFResult {
	metrics.IncWAFRequest()
	res := e.detector.Scan(meta)
	if res.IsMalicious {
		metrics.IncWAFBlocked()
		identifier := UnknownIdentifier
		if raw := firstForwardedHop(meta.Headers); raw != "" {
			identifier = HashIdentifier(raw)
		}
		e.log.WithFields(logrus.Fields{
			"identifier": identifier,
			"risk_score": res.RiskScore,
			"threats":    res.Threats,
			"method":     meta.Method,
		}).Warn("malicious request detected")
		e.record(EventRecord{
			Source:     "waf",
			Action:     "block",
			Identifier: identifier,
			Context:    meta.Method,
			Threats:    res.Threats,
			RiskScore:  res.RiskScore,
			Details:    meta.URL,
		})
	}
	return res
}

// ValidateInput runs the context-aware validation pipeline for one payload.
func (e *Engine) ValidateInput(input string, ctx Context, opts ValidateOptions) ValidationResult {
	res := e.validator.Validate(input, ctx, opts)
	if !res.IsValid {
		metrics.IncValidationRejected()
		e.log.WithFields(logrus.Fields{
			"context":    string(ctx),
			"risk_score": res.RiskScore,
			"errors":     res.Errors,
		}).Info("input rejected by validator")
	}
	return res
}

// Penalize lowers an identifier's reputation. Call sites feed violations
// back here so future limits tighten.
func (e *Engine) Penalize(identifier string, delta int, reason string) {
	e.reputation.Penalize(identifier, delta, reason)
}

// Reward raises an identifier's reputation.
func (e *Engine) Reward(identifier string, delta int) {
	e.reputation.Reward(identifier, delta)
}

// Reputation returns a copy of the identifier's current standing.
func (e *Engine) Reputation(identifier string) Reputation {
	return e.reputation.Get(identifier)
}

// GenerateCSRFToken issues a fresh anti-forgery token for the session.
func (e *Engine) GenerateCSRFToken(sessionID string) (string, error) {
	return e.csrf.Issue(sessionID)
}

// ValidateCSRFToken checks a presented token. Mismatches are audited.
func (e *Engine) ValidateCSRFToken(sessionID, token string) bool {
	ok := e.csrf.Validate(sessionID, token)
	if !ok {
		metrics.IncCSRFFailure()
		e.log.WithField("session", sessionID).Warn("csrf token validation failed")
		e.record(EventRecord{
			Source:  "csrf",
			Action:  "reject",
			Context: sessionID,
			Threats: []string{ViolationCSRFMismatch},
		})
	}
	return ok
}

// ViolationCount pairs a violation reason with its occurrence count.
type ViolationCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// SecurityReport is a point-in-time summary of engine activity.
type SecurityReport struct {
	TotalRequests     uint64           `json:"total_requests"`
	BlockedRequests   uint64           `json:"blocked_requests"`
	TopViolationTypes []ViolationCount `json:"top_violation_types"`
	TopOffenders      []Offender       `json:"top_offenders"`
	ActiveCSRFTokens  int              `json:"active_csrf_tokens"`
}

// Report summarizes engine activity. Reading the report mutates nothing;
// two consecutive calls with no intervening traffic return identical totals.
func (e *Engine) Report() SecurityReport {
	e.mu.Lock()
	total, blocked := e.total, e.blocked
	e.mu.Unlock()

	counts := e.reputation.violationCounts()
	top := make([]ViolationCount, 0, len(counts))
	for reason, n := range counts {
		top = append(top, ViolationCount{Reason: reason, Count: n})
	}
	sortViolations(top)
	if len(top) > 5 {
		top = top[:5]
	}

	return SecurityReport{
		TotalRequests:     total,
		BlockedRequests:   blocked,
		TopViolationTypes: top,
		TopOffenders:      e.reputation.worstOffenders(5),
		ActiveCSRFTokens:  e.csrf.ActiveCount(),
	}
}

func (e *Engine) count(allowed bool) {
	e.mu.Lock()
	e.total++
	if !allowed {
		e.blocked++
	}
	e.mu.Unlock()
}

func (e *Engine) record(ev EventRecord) {
	if e.sink != nil {
		e.sink.Record(ev)
	}
}

// sortViolations orders by descending count, then reason for stability.
func sortViolations(v []ViolationCount) {
	sort.Slice(v, func(i, j int) bool {
		if v[i].Count != v[j].Count {
			return v[i].Count > v[j].Count
		}
		return v[i].Reason < v[j].Reason
	})
}
