package observability

import (
	"strings"
	"unicode"
)

// Log field scrubbing. Request-derived strings (routes, methods, account IDs)
// pass through here before they reach a structured log line or span attribute.

func scrub(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sanitizeString(value string, limit int) string {
	return scrub(value, limit)
}

// SanitizeRoute bounds a chi route pattern for log fields.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrub(route, 180)
}

// SanitizeMethod bounds an HTTP method name.
func SanitizeMethod(method string) string {
	return scrub(method, 10)
}

// SanitizeUserID caps account identifiers so log lines carry a reference, not
// a payload.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return scrub(uid, 64)
}
