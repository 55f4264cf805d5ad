package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spaolacci/murmur3"
)

// ConnectionIDPrefix is the prefix for live connection attempt IDs.
const ConnectionIDPrefix = "mlcn-"

// GenerateConnectionID returns a new ID for one live connection attempt.
// Format: mlcn-{ulid_lowercase}.
func GenerateConnectionID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		// Entropy exhaustion only; fall back to the timestamp alone.
		return ConnectionIDPrefix + fmt.Sprintf("%x", now.UnixNano())
	}
	return ConnectionIDPrefix + strings.ToLower(id.String())
}

// Fingerprint returns a short non-reversible tag for a bearer token.
// It lets logs and metrics tell tokens apart without exposing them.
// The empty token has the empty fingerprint.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return fmt.Sprintf("%08x", murmur3.Sum32([]byte(token)))
}
