package backend

import "strings"

// NormalizeURL trims raw and prefixes https:// when no http(s) scheme is
// present. Already prefixed input is returned unchanged apart from trimming.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}
