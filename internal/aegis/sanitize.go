package aegis

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Context tags the kind of payload being validated or sanitized. Each kind
// dispatches to its own rule set; there is no stringly-typed branching
// beyond this enum.
type Context string

const (
	ContextGeneric Context = "generic"
	ContextCode    Context = "code"
	ContextChat    Context = "chat"
	ContextSearch  Context = "search"
	ContextSymbol  Context = "symbol"
	ContextToken   Context = "token"
	ContextHTML    Context = "html"
	ContextMQL5    Context = "mql5"
	ContextURL     Context = "url"
	ContextEmail   Context = "email"
)

// ParseContext maps a wire string to a known context, defaulting to generic.
func ParseContext(s string) Context {
	switch c := Context(strings.ToLower(s)); c {
	case ContextCode, ContextChat, ContextSearch, ContextSymbol,
		ContextToken, ContextHTML, ContextMQL5, ContextURL, ContextEmail:
		return c
	default:
		return ContextGeneric
	}
}

// Truncation ceilings per sanitizer kind.
const (
	maxTextLen   = 1000
	maxCodeLen   = 50000
	maxSymbolLen = 10
	maxSearchLen = 200
)

// Safe inline tags kept by the html sanitizer.
var safeHTMLTags = map[string]struct{}{
	"b": {}, "i": {}, "em": {}, "strong": {}, "u": {}, "p": {}, "br": {},
}

var (
	anyTag       = regexp.MustCompile(`<[^>]*>?`)
	tagName      = regexp.MustCompile(`^</?\s*([a-zA-Z0-9]+)`)
	scriptTag    = regexp.MustCompile(`(?i)<\s*/?\s*script[^>]*>`)
	jsURI        = regexp.MustCompile(`(?i)javascript\s*:`)
	nonSymbol    = regexp.MustCompile(`[^A-Z0-9/]`)
	nonToken     = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	nonEmail     = regexp.MustCompile(`[^a-z0-9@._+-]`)
	quotesAngles = regexp.MustCompile("[\"'<>`]")
	urlSchemePfx = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
)

// Sanitize returns input normalized for the given kind. It is a pure
// function; it never rejects, only rewrites. Callers wanting rejection
// semantics use Validator.Validate.
func Sanitize(input string, kind Context) string {
	switch kind {
	case ContextHTML:
		return sanitizeHTML(input)
	case ContextCode, ContextMQL5:
		out := scriptTag.ReplaceAllString(input, "")
		out = jsURI.ReplaceAllString(out, "")
		return truncate(out, maxCodeLen)
	case ContextSymbol:
		out := strings.ToUpper(input)
		out = nonSymbol.ReplaceAllString(out, "")
		return truncate(out, maxSymbolLen)
	case ContextToken:
		return nonToken.ReplaceAllString(input, "")
	case ContextURL:
		out := quotesAngles.ReplaceAllString(input, "")
		if out != "" && !urlSchemePfx.MatchString(out) {
			out = "https://" + out
		}
		return out
	case ContextSearch:
		out := quotesAngles.ReplaceAllString(input, "")
		return truncate(out, maxSearchLen)
	case ContextEmail:
		out := strings.ToLower(input)
		return nonEmail.ReplaceAllString(out, "")
	default: // chat, generic and anything unmapped sanitize as plain text
		out := anyTag.ReplaceAllString(input, "")
		out = strings.NewReplacer("<", "", ">", "").Replace(out)
		return truncate(out, maxTextLen)
	}
}

// sanitizeHTML keeps a small allow-list of inline tags and strips the rest.
func sanitizeHTML(input string) string {
	return anyTag.ReplaceAllStringFunc(input, func(tag string) string {
		m := tagName.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		if _, ok := safeHTMLTags[strings.ToLower(m[1])]; ok {
			return tag
		}
		return ""
	})
}

// truncate caps s at n characters, never cutting inside a multi-byte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
