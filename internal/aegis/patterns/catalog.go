// Package patterns provides the immutable attack-signature catalog consumed
// by the WAF and the input validator. All regexes are compiled once at
// catalog construction and shared, read-only, across every request.
package patterns

import (
	"regexp"
	"sync"
)

// Severity tiers a category's urgency independent of its numeric weight.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Category names. Stable keys used by callers to single out categories.
const (
	SQLInjection     = "sql_injection"
	XSS              = "xss"
	CommandInjection = "command_injection"
	PathTraversal    = "path_traversal"
	LDAPInjection    = "ldap_injection"
	NoSQLInjection   = "nosql_injection"
	XXE              = "xxe"
	SSRF             = "ssrf"
	FileInclusion    = "file_inclusion"
	BufferOverflow   = "buffer_overflow"
	Encoding         = "encoding"

	// Trading-script DSL categories, scanned only in the mql5 input context.
	MQL5Dangerous   = "mql5_dangerous"
	MQL5Network     = "mql5_network"
	MQL5File        = "mql5_file"
	MQL5Registry    = "mql5_registry"
	MQL5Memory      = "mql5_memory"
	MQL5Obfuscation = "mql5_obfuscation"
)

// Category is a set of compiled matchers sharing one threat name, severity
// tier and base risk weight. Immutable after catalog construction.
type Category struct {
	Name          string
	Threat        string // human-readable, e.g. "SQL Injection"
	Severity      Severity
	BaseRiskScore int
	matchers      []*regexp.Regexp
}

// Match reports whether any matcher in the category matches s.
func (c *Category) Match(s string) bool {
	for _, re := range c.matchers {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Matchers returns the category's compiled regexps. Callers must not mutate
// the returned slice.
func (c *Category) Matchers() []*regexp.Regexp {
	return c.matchers
}

// Catalog holds every category, keyed by name and in registration order.
type Catalog struct {
	byName  map[string]*Category
	ordered []*Category
}

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default returns the shared catalog, built on first use.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = New()
	})
	return defaultCatalog
}

// New builds a fully populated catalog. Panics on an invalid pattern, which
// is a programming error caught by the package tests.
func New() *Catalog {
	c := &Catalog{byName: make(map[string]*Category)}

	c.registerInjectionCategories()
	c.registerTransportCategories()
	c.registerBinaryCategories()
	c.registerMQL5Categories()

	return c
}

// add compiles and registers one category. Internal use only.
func (c *Catalog) add(name, threat string, sev Severity, risk int, exprs ...string) {
	cat := &Category{
		Name:          name,
		Threat:        threat,
		Severity:      sev,
		BaseRiskScore: risk,
		matchers:      make([]*regexp.Regexp, 0, len(exprs)),
	}
	for _, expr := range exprs {
		cat.matchers = append(cat.matchers, regexp.MustCompile(expr))
	}
	c.byName[name] = cat
	c.ordered = append(c.ordered, cat)
}

// Get returns the named category or nil.
func (c *Catalog) Get(name string) *Category {
	return c.byName[name]
}

// Categories returns every category in registration order. Callers must not
// mutate the returned slice.
func (c *Catalog) Categories() []*Category {
	return c.ordered
}

// Scan returns every category with at least one matcher matching s,
// in registration order.
func (c *Catalog) Scan(s string) []*Category {
	var hits []*Category
	for _, cat := range c.ordered {
		if cat.Match(s) {
			hits = append(hits, cat)
		}
	}
	return hits
}

// ScanNamed is Scan restricted to the given category names. Unknown names
// are skipped.
func (c *Catalog) ScanNamed(s string, names ...string) []*Category {
	var hits []*Category
	for _, name := range names {
		if cat := c.byName[name]; cat != nil && cat.Match(s) {
			hits = append(hits, cat)
		}
	}
	return hits
}

// TotalPatterns returns the number of compiled matchers across all categories.
func (c *Catalog) TotalPatterns() int {
	n := 0
	for _, cat := range c.ordered {
		n += len(cat.matchers)
	}
	return n
}
