package aegis

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/tradersage/bastion/internal/aegis/patterns"
)

// RequestMetadata is the plain-data view of a request handed to the WAF.
type RequestMetadata struct {
	URL           string
	Method        string
	UserAgent     string
	Referer       string
	Origin        string
	Headers       http.Header
	ContentLength int64
}

// WAFResult is the detector's verdict for one request.
type WAFResult struct {
	IsMalicious bool     `json:"is_malicious"`
	Threats     []string `json:"threats"`
	RiskScore   int      `json:"risk_score"`
	Confidence  float64  `json:"confidence"`
}

// Fixed risk weights for request-shape findings.
const (
	riskBot             = 50
	riskDangerousMethod = 60
	riskHeaderInjection = 70
	riskIPSpoofing      = 65
	riskOversizePayload = 40

	maliciousThreshold = 50
)

// Diagnostic HTTP methods refused outright.
var dangerousMethods = map[string]struct{}{
	"TRACE":   {},
	"CONNECT": {},
	"TRACK":   {},
	"DEBUG":   {},
}

// User-agent substrings of known scanners and attack tooling.
var suspiciousAgents = []string{
	"sqlmap", "nikto", "nmap", "masscan", "burpsuite", "burp collaborator",
	"dirbuster", "gobuster", "wfuzz", "ffuf", "acunetix", "nessus",
	"metasploit", "hydra", "zgrab", "nuclei", "whatweb", "openvas",
}

var (
	crlfSeq   = regexp.MustCompile(`(?i)(%0d|%0a|\r|\n)`)
	privateIP = regexp.MustCompile(`\b(127\.\d{1,3}\.\d{1,3}\.\d{1,3}|10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}|0\.0\.0\.0|::1)\b`)
)

// Detector classifies request metadata against the signature catalog.
// Scanning is a pure function of its input and the read-only catalog; the
// detector never touches the reputation table. Callers penalize reputation
// based on the verdict.
type Detector struct {
	catalog         *patterns.Catalog
	maxPayloadBytes int64
	botDetection    bool
}

// NewDetector returns a detector over the given catalog.
func NewDetector(catalog *patterns.Catalog, maxPayloadBytes int64, botDetection bool) *Detector {
	return &Detector{
		catalog:         catalog,
		maxPayloadBytes: maxPayloadBytes,
		botDetection:    botDetection,
	}
}

// Scan evaluates one request's metadata and returns a threat verdict.
func (d *Detector) Scan(meta RequestMetadata) WAFResult {
	risk := 0
	seen := make(map[string]struct{})
	var threats []string

	// Threats are a set; a repeat finding adds neither a name nor weight.
	record := func(threat string, weight int) {
		if _, dup := seen[threat]; dup {
			return
		}
		seen[threat] = struct{}{}
		threats = append(threats, threat)
		risk += weight
	}

	target := meta.URL + " " + meta.Referer + " " + meta.Origin
	for _, cat := range d.catalog.Scan(target) {
		record(cat.Threat, cat.BaseRiskScore)
	}

	if d.botDetection && meta.UserAgent != "" {
		ua := strings.ToLower(meta.UserAgent)
		for _, agent := range suspiciousAgents {
			if strings.Contains(ua, agent) {
				record("Bot detected: "+agent, riskBot)
				break
			}
		}
	}

	if _, bad := dangerousMethods[strings.ToUpper(meta.Method)]; bad {
		record("Dangerous HTTP Method", riskDangerousMethod)
	}

	for _, h := range clientIPHeaders {
		v := meta.Headers.Get(h)
		if v == "" {
			continue
		}
		if crlfSeq.MatchString(v) {
			record("Header Injection", riskHeaderInjection)
		}
		if privateIP.MatchString(v) {
			record("IP Spoofing Attempt", riskIPSpoofing)
		}
	}

	if d.maxPayloadBytes > 0 && meta.ContentLength > d.maxPayloadBytes {
		record("Oversize Payload", riskOversizePayload)
	}

	if risk > 100 {
		risk = 100
	}

	return WAFResult{
		IsMalicious: risk > maliciousThreshold,
		Threats:     threats,
		RiskScore:   risk,
		Confidence:  float64(risk) / 100,
	}
}

// MetadataFromRequest flattens an http.Request into the detector's input.
func MetadataFromRequest(r *http.Request) RequestMetadata {
	return RequestMetadata{
		URL:           r.URL.RequestURI(),
		Method:        r.Method,
		UserAgent:     r.UserAgent(),
		Referer:       r.Referer(),
		Origin:        r.Header.Get("Origin"),
		Headers:       r.Header,
		ContentLength: r.ContentLength,
	}
}
