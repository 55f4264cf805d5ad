package live

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// State is the connection state of a Manager.
type State int

// Connection states.
const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedClean
	StateClosedDropped
	StateAwaitingRetry
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedClean:
		return "closed_clean"
	case StateClosedDropped:
		return "closed_dropped"
	case StateAwaitingRetry:
		return "awaiting_retry"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Close codes used by the client.
const (
	CloseNormalClosure = 1000
	CloseAbnormal      = 1006
	UserDisconnectText = "User disconnect"
)

// CloseError describes how a connection ended.
//
// Clean is true when the peer completed the closing handshake with a
// status code; network failures are not clean.
type CloseError struct {
	Code  int
	Text  string
	Clean bool
}

func (e *CloseError) Error() string {
	kind := "dropped"
	if e.Clean {
		kind = "closed"
	}
	if e.Text == "" {
		return fmt.Sprintf("websocket %s (code %d)", kind, e.Code)
	}
	return fmt.Sprintf("websocket %s (code %d): %s", kind, e.Code, e.Text)
}

// DefaultBackoff is the reconnect delay table.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	30 * time.Second,
}

// Policy decides whether and when to reconnect.
type Policy struct {
	// Backoff is indexed by the attempt counter, clamped to its last entry.
	Backoff []time.Duration
	// TerminalCodes are clean close codes after which no reconnect happens,
	// in addition to 1000.
	TerminalCodes []int
}

// DefaultPolicy returns the default reconnect policy.
func DefaultPolicy() Policy {
	return Policy{Backoff: slices.Clone(DefaultBackoff)}
}

// Delay returns the wait before the reconnect that follows attempt.
func (p Policy) Delay(attempt int) time.Duration {
	backoff := p.Backoff
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	if attempt < 0 {
		attempt = 0
	}
	return backoff[min(attempt, len(backoff)-1)]
}

// ShouldRetry reports whether a connection that ended with err should be
// re-established. Only a clean close with 1000 or a terminal code stops
// retries; dial failures and drops always retry.
func (p Policy) ShouldRetry(err error) bool {
	var ce *CloseError
	if !errors.As(err, &ce) || !ce.Clean {
		return true
	}
	if ce.Code == CloseNormalClosure {
		return false
	}
	return !slices.Contains(p.TerminalCodes, ce.Code)
}
