package aegis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tradersage/bastion/internal/aegis/patterns"
)

// ValidateOptions tunes a single validation call.
type ValidateOptions struct {
	// Strict escalates every catalog match to a hard error.
	Strict bool
	// Sanitize produces SanitizedData when no hard error occurred.
	Sanitize bool
}

// ValidationResult reports one validation call. Produced fresh per call and
// never persisted.
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	SanitizedData string   `json:"sanitized_data,omitempty"`
	RiskScore     int      `json:"risk_score"`
}

// Risk deltas for the validator's fixed checks.
const (
	riskEmptyInput    = 100
	riskOversize      = 20
	riskBadStructure  = 30
	riskPlaceholder   = 25
	riskXSSStripped   = 30
	riskSQLiStripped  = 40
	riskSanitizeDelta = 5

	maxInputChars     = 100_000
	minTokenLen       = 20
	validityThreshold = 70
)

// Symbol forms accepted by the symbol context: a 3/3 currency pair, a longer
// crypto pair, or a 1-5 letter stock ticker.
var symbolForms = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Za-z]{3}/[A-Za-z]{3}$`),
	regexp.MustCompile(`^[A-Za-z0-9]{2,10}/[A-Za-z]{3,4}$`),
	regexp.MustCompile(`^[A-Za-z]{1,5}$`),
}

// Placeholder values that must never reach production as credentials.
var tokenPlaceholders = []string{
	"your-api-key", "your_api_key", "test-key", "test_key",
	"placeholder", "changeme", "example-key", "demo-key", "xxx",
}

var emailForm = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Substrings removed by the dedicated XSS and SQL-injection strip passes.
var (
	xssStrips = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*/?\s*script[^>]*>`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)\bon\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`),
	}
	sqliStrips = []*regexp.Regexp{
		regexp.MustCompile(`(?i)('|%27)\s*(or|and)\s+[\w'"]+\s*=\s*[\w'"]*`),
		regexp.MustCompile(`(?i)\bunion(\s+all)?\s+select\b`),
		regexp.MustCompile(`(?i);\s*(--|#)[^\n]*`),
		regexp.MustCompile(`(?i)\b(drop\s+(table|database)|xp_cmdshell|waitfor\s+delay)\b`),
	}
)

// MQL5 categories escalating to hard errors rather than warnings.
var mql5HardErrors = map[string]struct{}{
	patterns.MQL5Dangerous:   {},
	patterns.MQL5Registry:    {},
	patterns.MQL5Obfuscation: {},
}

var mql5Categories = []string{
	patterns.MQL5Dangerous, patterns.MQL5Network, patterns.MQL5File,
	patterns.MQL5Registry, patterns.MQL5Memory, patterns.MQL5Obfuscation,
}

// Validator performs context-aware structural checks plus catalog scans over
// user input. It never fails with an error value; malformed or malicious
// input is communicated through the result.
type Validator struct {
	catalog         *patterns.Catalog
	maxPayloadBytes int64
}

// NewValidator returns a validator over the given catalog.
func NewValidator(catalog *patterns.Catalog, maxPayloadBytes int64) *Validator {
	return &Validator{catalog: catalog, maxPayloadBytes: maxPayloadBytes}
}

// Validate runs the ordered validation pipeline for one payload.
func (v *Validator) Validate(input string, ctx Context, opts ValidateOptions) ValidationResult {
	res := ValidationResult{}
	fail := func(risk int, msg string) {
		res.RiskScore += risk
		res.Errors = append(res.Errors, msg)
	}
	warn := func(risk int, msg string) {
		res.RiskScore += risk
		res.Warnings = append(res.Warnings, msg)
	}

	// Empty input is a hard rejection everywhere except search, where an
	// empty query is a legitimate "match all".
	if input == "" {
		if ctx == ContextSearch {
			res.IsValid = true
			return res
		}
		fail(riskEmptyInput, "input must not be empty")
		return finish(res)
	}

	if v.maxPayloadBytes > 0 && int64(len(input)) > v.maxPayloadBytes {
		fail(riskOversize, fmt.Sprintf("payload exceeds maximum size of %d bytes", v.maxPayloadBytes))
		return finish(res)
	}
	if len([]rune(input)) > maxInputChars {
		fail(riskOversize, fmt.Sprintf("input exceeds maximum length of %d characters", maxInputChars))
		return finish(res)
	}

	v.checkStructure(input, ctx, fail, warn)

	// Generic catalog scan, shared with the WAF. High-severity matches (or
	// any match under strict) are hard errors. The DSL categories are owned
	// by the mql5 structural check above; html defers markup handling to
	// the sanitizer so stripped output can still be accepted.
	for _, cat := range v.catalog.Scan(input) {
		if strings.HasPrefix(cat.Name, "mql5_") {
			continue
		}
		if ctx == ContextHTML && cat.Name == patterns.XSS {
			continue
		}
		msg := fmt.Sprintf("%s signature detected", cat.Threat)
		if opts.Strict || cat.Severity == patterns.SeverityHigh {
			fail(cat.BaseRiskScore, msg)
		} else {
			warn(cat.BaseRiskScore, msg)
		}
	}

	// Dedicated strip passes: remove matched substrings from the working
	// copy so a requested sanitize pass never re-emits them.
	working := input
	if stripped := stripAll(working, xssStrips); stripped != working {
		working = stripped
		if ctx == ContextHTML {
			warn(riskXSSStripped, "cross-site scripting content removed")
		} else {
			fail(riskXSSStripped, "cross-site scripting content removed")
		}
	}
	if stripped := stripAll(working, sqliStrips); stripped != working {
		working = stripped
		fail(riskSQLiStripped, "SQL injection content removed")
	}

	if opts.Sanitize && len(res.Errors) == 0 {
		sanitized := Sanitize(working, ctx)
		if sanitized != working {
			warn(riskSanitizeDelta, "input was modified during sanitization")
		}
		res.SanitizedData = sanitized
	}

	return finish(res)
}

// checkStructure applies the per-context structural rules.
func (v *Validator) checkStructure(input string, ctx Context, fail, warn func(int, string)) {
	switch ctx {
	case ContextSymbol:
		for _, form := range symbolForms {
			if form.MatchString(input) {
				return
			}
		}
		fail(riskBadStructure, "symbol must be a currency pair, crypto pair or stock ticker")

	case ContextToken:
		lower := strings.ToLower(input)
		for _, ph := range tokenPlaceholders {
			if strings.Contains(lower, ph) {
				fail(riskPlaceholder, "token contains a placeholder value")
				break
			}
		}
		if len(input) < minTokenLen {
			warn(10, fmt.Sprintf("token is shorter than %d characters", minTokenLen))
		}

	case ContextMQL5:
		for _, cat := range v.catalog.ScanNamed(input, mql5Categories...) {
			msg := fmt.Sprintf("%s in script", strings.ToLower(cat.Threat))
			if _, hard := mql5HardErrors[cat.Name]; hard {
				fail(cat.BaseRiskScore, msg)
			} else {
				warn(cat.BaseRiskScore, msg)
			}
		}

	case ContextEmail:
		if !emailForm.MatchString(input) {
			fail(riskBadStructure, "invalid email address")
		}

	case ContextURL:
		if strings.ContainsAny(input, " \t") {
			fail(riskBadStructure, "URL must not contain whitespace")
		}
	}
}

// finish caps the risk score and derives final validity.
func finish(res ValidationResult) ValidationResult {
	if res.RiskScore > 100 {
		res.RiskScore = 100
	}
	res.IsValid = len(res.Errors) == 0 && res.RiskScore < validityThreshold
	return res
}

func stripAll(s string, strips []*regexp.Regexp) string {
	for _, re := range strips {
		s = re.ReplaceAllString(s, "")
	}
	return s
}
