package logger

import (
	"log/slog"
	"strings"
)

// jwtPrefix is how every base64url-encoded JWT header starts ({"...).
const jwtPrefix = "eyJ"

// bearerPrefix is the Authorization header scheme.
const bearerPrefix = "Bearer "

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"passphrase",
	"credential",
	"authorization",
	"bearer",
}

// Keys that contain a sensitive pattern but carry log-safe values.
var safeKeys = map[string]bool{
	"token_fp": true,
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()

		// Value shape wins over key name: a JWT is masked wherever it appears.
		if IsSensitiveValue(strVal) {
			return slog.String(a.Key, RedactString(strVal))
		}

		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue partially masks a sensitive value, keeping prefix and hints.
// Format: prefix + first 3 chars + "..." + last 3 chars
func maskValue(value, prefix string) string {
	body := value[len(prefix):]
	if len(body) <= 6 {
		return prefix + "***"
	}
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString masks a bearer token or JWT so it can be printed.
// Other values are returned unchanged.
func RedactString(value string) string {
	switch {
	case strings.HasPrefix(value, bearerPrefix):
		return bearerPrefix + RedactString(value[len(bearerPrefix):])
	case strings.HasPrefix(value, jwtPrefix):
		return maskValue(value, jwtPrefix)
	default:
		return value
	}
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if safeKeys[keyLower] {
		return false
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value looks like a bearer credential.
func IsSensitiveValue(value string) bool {
	return strings.HasPrefix(value, jwtPrefix) || strings.HasPrefix(value, bearerPrefix)
}
