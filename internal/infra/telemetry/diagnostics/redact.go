package diagnostics

import (
	"net/http"
	"strings"
)

const RedactedValue = "***"

var sensitiveKeys = []string{
	"token",
	"secret",
	"password",
	"passwd",
	"authorization",
	"api_key",
	"apikey",
	"cookie",
	"credential",
	"private_key",
}

// RedactValue masks the value if the key is sensitive.
func RedactValue(key, value string) string {
	if ContainsSensitiveKey(key) {
		return RedactedValue
	}
	return value
}

// RedactHeader returns a copy of h with sensitive header values masked.
func RedactHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for key, values := range h {
		if ContainsSensitiveKey(key) {
			masked := make([]string, len(values))
			for i := range masked {
				masked[i] = RedactedValue
			}
			out[key] = masked
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}

// ContainsSensitiveKey reports whether the key should be redacted.
func ContainsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	for _, needle := range sensitiveKeys {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

// TruncateString truncates the value to limit bytes and appends a suffix when needed.
func TruncateString(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
