package patterns

// =============================================================================
// SIGNATURE DEFINITIONS BY CATEGORY
// Each category carries a human-readable threat name, a severity tier and a
// base risk weight. Weights are what the WAF sums per matched category; a
// single high-tier hit is enough to cross the malicious threshold (>50).
// =============================================================================

// --- INJECTION CATEGORIES ---
func (c *Catalog) registerInjectionCategories() {
	c.add(SQLInjection, "SQL Injection", SeverityHigh, 60,
		`(?i)('|%27)\s*(or|and)\s+[\w'"]+\s*=`,
		`(?i)\bunion(\s+all)?\s+select\b`,
		`(?i)\b(select\s+[\w*,\s]+\s+from|insert\s+into|update\s+\w+\s+set|delete\s+from|drop\s+(table|database))\b`,
		`(?i);\s*(--|#)`,
		`(?i)\b(exec(ute)?\s*\(|xp_cmdshell|information_schema|sysobjects)\b`,
		`(?i)\bwaitfor\s+delay\b`,
		`(?i)\b(benchmark|sleep)\s*\(\s*\d`,
	)

	c.add(XSS, "Cross-Site Scripting", SeverityHigh, 55,
		`(?i)<\s*script[^>]*>`,
		`(?i)<\s*/\s*script\s*>`,
		`(?i)javascript\s*:`,
		`(?i)vbscript\s*:`,
		`(?i)\bon(load|error|click|mouseover|focus|submit|blur)\s*=`,
		`(?i)<\s*(iframe|object|embed|applet)\b`,
		`(?i)document\.(cookie|write|location)`,
		`(?i)\bexpression\s*\(`,
	)

	c.add(CommandInjection, "Command Injection", SeverityHigh, 65,
		`(?i)[;&|]\s*(ls|cat|rm|wget|curl|nc|bash|sh|cmd|powershell)\b`,
		"`[^`]+`",
		`\$\([^)]*\)`,
		`(?i)\b(nc|netcat)\s+-[el]`,
		`(?i)\|\s*(sh|bash)\b`,
		`(?i)[;&|]\s*(ping|nslookup|whoami|ifconfig|ipconfig)\b`,
	)

	c.add(LDAPInjection, "LDAP Injection", SeverityMedium, 40,
		`\(\s*[|&]\s*\(`,
		`\*\)\s*\(`,
		`(?i)\(\s*\w+\s*=\s*\*\s*\)\s*\(`,
	)

	c.add(NoSQLInjection, "NoSQL Injection", SeverityMedium, 45,
		`(?i)\$where\b`,
		`(?i)\$(ne|gt|lt|gte|lte|regex|nin)\b`,
		`(?i)\{\s*"?\$`,
		`(?i)db\.\w+\.(find|remove|drop)\s*\(`,
	)
}

// --- TRANSPORT / REQUEST-SHAPE CATEGORIES ---
func (c *Catalog) registerTransportCategories() {
	c.add(PathTraversal, "Path Traversal", SeverityHigh, 55,
		`\.\./`,
		`\.\.\\`,
		`(?i)%2e%2e(%2f|%5c)`,
		`(?i)\.\.%c0%af`,
		`(?i)/etc/(passwd|shadow|hosts|sudoers)`,
		`(?i)c:\\(windows|winnt)\\`,
		`(?i)/proc/self/`,
	)

	c.add(XXE, "XML External Entity", SeverityHigh, 55,
		`(?i)<!DOCTYPE[^>]*\[`,
		`(?i)<!ENTITY`,
		`(?i)SYSTEM\s+["'](file|https?|expect):`,
	)

	c.add(SSRF, "Server-Side Request Forgery", SeverityHigh, 55,
		`(?i)\b(localhost|127\.0\.0\.1|0\.0\.0\.0)\b`,
		`(?i)\[?::1\]`,
		`(?i)\b169\.254\.169\.254\b`,
		`(?i)\bmetadata\.google\.internal\b`,
		`(?i)\b(10|192\.168)\.\d{1,3}\.\d{1,3}\.?`,
		`(?i)\b172\.(1[6-9]|2\d|3[01])\.\d{1,3}\.`,
		`(?i)\b(gopher|dict)://`,
	)

	c.add(FileInclusion, "File Inclusion", SeverityMedium, 45,
		`(?i)\b(php|data|zip|expect|phar)://`,
		`(?i)\b(include|require)(_once)?\s*\(`,
		`(?i)\.(ini|log|conf)%00`,
	)
}

// --- BINARY / ENCODING CATEGORIES ---
func (c *Catalog) registerBinaryCategories() {
	c.add(BufferOverflow, "Buffer Overflow Attempt", SeverityLow, 30,
		`%00`,
		`A{200,}`,
		`(\\x9[09]){4,}`,
		`(%n){3,}`,
	)

	c.add(Encoding, "Suspicious Encoding", SeverityLow, 25,
		`(?i)%c0%a[ef]`,
		`(?i)(%25){2,}`,
		`(?i)(\\u00[0-9a-f]{2}){4,}`,
		`(?i)(%[0-9a-f]{2}){20,}`,
	)
}

// --- TRADING-SCRIPT (MQL5) CATEGORIES ---
// Scanned only for payloads declared as trading-script source. Dangerous
// system calls, registry access and obfuscation escalate to hard errors in
// the validator; the rest surface as warnings.
func (c *Catalog) registerMQL5Categories() {
	c.add(MQL5Dangerous, "Dangerous System Call", SeverityHigh, 60,
		`(?i)#import\s+"[^"]+\.dll"`,
		`(?i)\b(ShellExecuteW?|WinExec|CreateProcessW?|TerminateProcess)\s*\(`,
		`(?i)\bURLDownloadToFileW?\s*\(`,
		`(?i)\bSendMessage[AW]?\s*\(`,
		`(?i)\bsystem\s*\(`,
	)

	c.add(MQL5Network, "Network Operation", SeverityMedium, 40,
		`(?i)\bWebRequest\s*\(`,
		`(?i)\bSocket(Create|Connect|Send|Read)\s*\(`,
		`(?i)\bInternetOpenUrl[AW]?\s*\(`,
		`(?i)\bFtp(Put|Get)File[AW]?\s*\(`,
	)

	c.add(MQL5File, "File Operation", SeverityMedium, 35,
		`(?i)\bFile(Open|Write|Delete|Move|Copy)\s*\(`,
		`(?i)\bFolder(Create|Delete|Clean)\s*\(`,
	)

	c.add(MQL5Registry, "Registry Operation", SeverityHigh, 55,
		`(?i)\bReg(OpenKey|CreateKey|SetValue|DeleteKey|QueryValue)(Ex)?[AW]?\b`,
		`(?i)\bHKEY_(LOCAL_MACHINE|CURRENT_USER|CLASSES_ROOT|USERS)\b`,
	)

	c.add(MQL5Memory, "Memory Manipulation", SeverityMedium, 35,
		`(?i)\b(VirtualAlloc|WriteProcessMemory|ReadProcessMemory|HeapAlloc|memcpy)\b`,
	)

	c.add(MQL5Obfuscation, "Obfuscated Code", SeverityHigh, 45,
		`(?i)(CharToString\s*\(\s*\d+\s*\)\s*\+\s*){3,}`,
		`[A-Za-z0-9+/]{120,}={0,2}`,
		`(?i)(0x[0-9a-f]{2}\s*,\s*){32,}`,
		`(?i)\bStringToCharArray\s*\([^)]*\)\s*;\s*.{0,40}\bCharArrayToString\s*\(`,
	)
}
