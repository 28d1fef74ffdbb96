package logging

import (
	"regexp"
	"strings"
)

// credentialPattern matches key/value pairs that carry Delta credentials or
// request signatures, in headers, query strings or JSON bodies.
var credentialPattern = regexp.MustCompile(`(?i)("?(?:api[_-]?key|api[_-]?secret|signature|secret|token)"?\s*[=:]\s*"?)([^\s"&,}]+)`)

// MaskCredential keeps the first and last four characters of long values.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// Redact masks credential values embedded in free text such as an echoed
// request or an exchange error body.
func Redact(s string) string {
	return credentialPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := credentialPattern.FindStringSubmatch(match)
		return parts[1] + MaskCredential(parts[2])
	})
}
