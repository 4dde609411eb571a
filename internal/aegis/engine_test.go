package aegis

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink collects audit records for assertions.
type memorySink struct {
	mu     sync.Mutex
	events []EventRecord
}

func (s *memorySink) Record(ev EventRecord) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *memorySink) all() []EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EventRecord(nil), s.events...)
}

func newTestEngine(clock *fakeClock, sink EventSink) *Engine {
	return New(Config{
		MaxPayloadBytes: 1 << 20,
		BotDetection:    true,
		Now:             clock.Now,
		Sink:            sink,
	})
}

func TestEngine_DefaultsApplied(t *testing.T) {
	e := New(Config{})
	require.NotNil(t, e)

	report := e.Report()
	assert.Zero(t, report.TotalRequests)
	assert.Zero(t, report.BlockedRequests)
	assert.Empty(t, report.TopViolationTypes)
	assert.Empty(t, report.TopOffenders)
}

func TestEngine_CheckRateLimitAuditsRejections(t *testing.T) {
	clock := newFakeClock()
	sink := &memorySink{}
	e := newTestEngine(clock, sink)

	// basic tier on the auth context: 60 * 0.3 = 18 per window.
	for i := 0; i < 18; i++ {
		res := e.CheckRateLimit("client-a", "auth", RateLimitOptions{Tier: TierBasic})
		require.True(t, res.Allowed, "request %d", i+1)
	}
	res := e.CheckRateLimit("client-a", "auth", RateLimitOptions{Tier: TierBasic})
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "ratelimit", events[0].Source)
	assert.Equal(t, "client-a", events[0].Identifier)
	assert.Contains(t, events[0].Threats, ViolationRateLimit)

	// The rejection fed back into reputation.
	assert.Equal(t, -rateLimitPenalty, e.Reputation("client-a").Score)
}

func TestEngine_GateRequestBlocksAndAudits(t *testing.T) {
	clock := newFakeClock()
	sink := &memorySink{}
	e := newTestEngine(clock, sink)

	for i := 0; i < 10; i++ {
		res := e.GateRequest("client-b", ClassAuth)
		require.True(t, res.Allowed, "request %d", i+1)
	}
	res := e.GateRequest("client-b", ClassAuth)
	assert.False(t, res.Allowed)
	assert.Equal(t, clock.Now().Add(15*time.Minute), res.BlockedUntil)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "penaltybox", events[0].Source)
	assert.Equal(t, string(ClassAuth), events[0].Context)
}

func TestEngine_DetectThreatsAuditsWithHashedIdentifier(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(newFakeClock(), sink)

	headers := http.Header{}
	headers.Set("X-Forwarded-For", "203.0.113.9")
	res := e.DetectThreats(RequestMetadata{
		URL:     "/api/quotes?symbol=' OR 1=1--",
		Method:  "GET",
		Headers: headers,
	})
	require.True(t, res.IsMalicious)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "waf", events[0].Source)
	assert.Equal(t, HashIdentifier("203.0.113.9"), events[0].Identifier)
	assert.Equal(t, res.RiskScore, events[0].RiskScore)
	assert.NotEqual(t, UnknownIdentifier, events[0].Identifier)
}

func TestEngine_DetectThreatsMatchesLimiterIdentifierBehindProxyChain(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(newFakeClock(), sink)

	req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	req.URL.RawQuery = "symbol=' OR 1=1--"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.24")

	res := e.DetectThreats(MetadataFromRequest(req))
	require.True(t, res.IsMalicious)

	// Audit rows key the same client hop the rate limiter uses.
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, ClientIdentifier(req), events[0].Identifier)
	assert.Equal(t, HashIdentifier("203.0.113.9"), events[0].Identifier)
}

func TestEngine_DetectThreatsCleanRequestNotAudited(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(newFakeClock(), sink)

	res := e.DetectThreats(RequestMetadata{
		URL:       "/api/quotes?symbol=EURUSD",
		Method:    "GET",
		UserAgent: "Mozilla/5.0",
	})
	assert.False(t, res.IsMalicious)
	assert.Empty(t, sink.all())
}

func TestEngine_ValidateCSRFTokenAuditsFailure(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(newFakeClock(), sink)

	token, err := e.GenerateCSRFToken("s1")
	require.NoError(t, err)

	assert.True(t, e.ValidateCSRFToken("s1", token))
	assert.Empty(t, sink.all())

	assert.False(t, e.ValidateCSRFToken("s1", "forged"))
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "csrf", events[0].Source)
	assert.Contains(t, events[0].Threats, ViolationCSRFMismatch)
}

func TestEngine_ReportCountsAndTopViolations(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock, nil)

	for i := 0; i < 20; i++ {
		e.CheckRateLimit("client-c", "auth", RateLimitOptions{Tier: TierBasic})
	}

	report := e.Report()
	assert.Equal(t, uint64(20), report.TotalRequests)
	assert.Equal(t, uint64(2), report.BlockedRequests)
	require.NotEmpty(t, report.TopViolationTypes)
	assert.Equal(t, ViolationRateLimit, report.TopViolationTypes[0].Reason)
	assert.Equal(t, 2, report.TopViolationTypes[0].Count)
	require.NotEmpty(t, report.TopOffenders)
	assert.Equal(t, "client-c", report.TopOffenders[0].Identifier)
}

func TestEngine_ReportIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock, nil)

	e.Penalize("client-d", 60, ViolationWAFBlock)
	e.CheckRateLimit("client-d", "api", RateLimitOptions{Tier: TierBasic})
	_, err := e.GenerateCSRFToken("s1")
	require.NoError(t, err)

	first := e.Report()
	second := e.Report()
	assert.Equal(t, first, second)
}

func TestEngine_SweepReclaimsAllTables(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock, nil)

	e.CheckRateLimit("client-e", "api", RateLimitOptions{Tier: TierBasic})
	e.GateRequest("client-e", ClassAPI)
	e.Penalize("client-e", 5, ViolationBadInput)
	_, err := e.GenerateCSRFToken("s1")
	require.NoError(t, err)

	// Nothing is stale yet.
	assert.Equal(t, SweepStats{}, e.Sweep())

	clock.Advance(2 * time.Hour)
	stats := e.Sweep()
	assert.Equal(t, SweepStats{
		RateLimitEntries:  1,
		GateEntries:       1,
		ReputationEntries: 1,
		CSRFTokens:        1,
	}, stats)

	// A second pass finds nothing left.
	assert.Equal(t, SweepStats{}, e.Sweep())
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	e := New(Config{SweepInterval: time.Minute})

	e.Start()
	e.Start()
	e.Stop()
	e.Stop()

	// Restart after stop is also fine.
	e.Start()
	e.Stop()
}
