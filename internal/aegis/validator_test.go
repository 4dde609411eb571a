package aegis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradersage/bastion/internal/aegis/patterns"
)

func newTestValidator() *Validator {
	return NewValidator(patterns.Default(), 1<<20)
}

func TestValidator_EmptyInput(t *testing.T) {
	v := newTestValidator()

	res := v.Validate("", ContextGeneric, ValidateOptions{})
	assert.False(t, res.IsValid)
	assert.Equal(t, 100, res.RiskScore)
	assert.NotEmpty(t, res.Errors)

	// Empty search means "match all" and is allowed.
	res = v.Validate("", ContextSearch, ValidateOptions{})
	assert.True(t, res.IsValid)
	assert.Zero(t, res.RiskScore)
}

func TestValidator_OversizeInput(t *testing.T) {
	v := NewValidator(patterns.Default(), 64)

	res := v.Validate(strings.Repeat("x", 65), ContextChat, ValidateOptions{})
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors[0], "maximum size")
}

func TestValidator_SymbolContext(t *testing.T) {
	v := newTestValidator()

	for _, ok := range []string{"EUR/USD", "eur/usd", "BTC2X/USDT", "AAPL", "F"} {
		res := v.Validate(ok, ContextSymbol, ValidateOptions{})
		assert.True(t, res.IsValid, "symbol %q should validate", ok)
	}

	for _, bad := range []string{"EUR USD", "TOOLONGTICKER", "EUR//USD"} {
		res := v.Validate(bad, ContextSymbol, ValidateOptions{})
		assert.False(t, res.IsValid, "symbol %q should fail", bad)
	}
}

func TestValidator_SymbolRoundTrip(t *testing.T) {
	v := newTestValidator()

	res := v.Validate("EUR/USD", ContextSymbol, ValidateOptions{Sanitize: true})
	assert.True(t, res.IsValid)
	assert.Equal(t, "EUR/USD", res.SanitizedData)
	assert.Empty(t, res.Warnings)
}

func TestValidator_TokenContext(t *testing.T) {
	v := newTestValidator()

	res := v.Validate("your-api-key-here", ContextToken, ValidateOptions{})
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors[0], "placeholder")

	res = v.Validate("sk9f", ContextToken, ValidateOptions{})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings) // short token warning

	res = v.Validate("a8Xk29fLq0ZmNpR4tVw7Yb", ContextToken, ValidateOptions{})
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Warnings)
}

func TestValidator_HTMLSanitizeStripsScript(t *testing.T) {
	v := newTestValidator()

	res := v.Validate("<script>alert(1)</script>", ContextHTML, ValidateOptions{Sanitize: true})
	assert.True(t, res.IsValid)
	assert.NotContains(t, res.SanitizedData, "<script>")
	assert.NotContains(t, res.SanitizedData, "</script>")
	assert.NotEmpty(t, res.Warnings)
	assert.Less(t, res.RiskScore, validityThreshold)
}

func TestValidator_XSSOutsideHTMLIsError(t *testing.T) {
	v := newTestValidator()

	res := v.Validate("<script>alert(1)</script>", ContextChat, ValidateOptions{})
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Errors)
}

func TestValidator_SQLInjectionStripped(t *testing.T) {
	v := newTestValidator()

	res := v.Validate("name' OR 1=1; -- drop it", ContextGeneric, ValidateOptions{})
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "SQL injection content removed")
}

func TestValidator_StrictEscalatesWarnings(t *testing.T) {
	v := newTestValidator()

	// LDAP injection is a medium-severity category: a warning normally,
	// an error under strict.
	input := "(|(uid=*)(cn=admin"
	res := v.Validate(input, ContextGeneric, ValidateOptions{})
	assert.NotEmpty(t, res.Warnings)
	assert.Empty(t, res.Errors)

	res = v.Validate(input, ContextGeneric, ValidateOptions{Strict: true})
	assert.NotEmpty(t, res.Errors)
	assert.False(t, res.IsValid)
}

func TestValidator_MQL5Context(t *testing.T) {
	v := newTestValidator()

	// Dangerous system calls are hard errors.
	res := v.Validate(`#import "kernel32.dll"`+"\nint OnInit() { ShellExecuteW(0, 0, 0, 0, 0, 0); return 0; }", ContextMQL5, ValidateOptions{})
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Errors)

	// Network and file operations only warn.
	res = v.Validate(`int h = FileOpen("log.csv", FILE_WRITE);`, ContextMQL5, ValidateOptions{})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)

	// A plain indicator script is clean.
	res = v.Validate(`double ma = iMA(_Symbol, PERIOD_H1, 20, 0, MODE_SMA, PRICE_CLOSE);`, ContextMQL5, ValidateOptions{})
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Warnings)
}

func TestValidator_EmailContext(t *testing.T) {
	v := newTestValidator()

	assert.True(t, v.Validate("Trader@Example.com", ContextEmail, ValidateOptions{}).IsValid)
	assert.False(t, v.Validate("not-an-email", ContextEmail, ValidateOptions{}).IsValid)
}

func TestValidator_ValidityThreshold(t *testing.T) {
	v := newTestValidator()

	// Two medium-severity warnings push the risk past the threshold even
	// with no hard errors.
	input := `{"$where": "x"} (|(a=*)(b=*)( php://filter`
	res := v.Validate(input, ContextGeneric, ValidateOptions{})
	if len(res.Errors) == 0 {
		assert.GreaterOrEqual(t, res.RiskScore, validityThreshold)
		assert.False(t, res.IsValid)
	}
}
