package parser

import (
	"regexp"
	"strings"
)

// Character budgets for sanitized fields.
const (
	MaxTitleChars      = 50
	MaxBodyChars       = 300
	MaxSuggestionChars = 200
	MaxSummaryChars    = 500
)

var tagPattern = regexp.MustCompile(`(?i)</?[a-z][a-z0-9]*(?:\s[^<>]*)?/?>`)

// allowedTags is the inline formatting allowlist for feedback bodies.
var allowedTags = map[string]bool{
	"b":      true,
	"strong": true,
	"i":      true,
	"em":     true,
	"code":   true,
	"br":     true,
}

var tagNamePattern = regexp.MustCompile(`(?i)^</?\s*([a-z][a-z0-9]*)`)

// SanitizePlain strips every markup tag and trims whitespace. Used for
// titles, which carry no formatting.
func SanitizePlain(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// SanitizeRich strips markup except a small safe inline allowlist
// (bold, italic, code, line breaks). Attributes are never kept.
func SanitizeRich(s string) string {
	out := tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
		m := tagNamePattern.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		name := strings.ToLower(m[1])
		if !allowedTags[name] {
			return ""
		}
		if strings.HasPrefix(tag, "</") {
			return "</" + name + ">"
		}
		if name == "br" {
			return "<br>"
		}
		return "<" + name + ">"
	})
	return strings.TrimSpace(out)
}

// Truncate caps s at limit characters, replacing the tail with "..."
// when it exceeds the limit. Limits count runes, not bytes, so
// multibyte text is never cut mid-sequence. The result never exceeds
// limit, so truncating an already-truncated string is a no-op.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
