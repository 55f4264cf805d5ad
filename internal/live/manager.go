package live

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/infra/clock"
	"github.com/yndnr/moonlink/internal/telemetry/logger"
	"github.com/yndnr/moonlink/internal/telemetry/metric"
)

// Conn is an open push-channel connection.
type Conn interface {
	// ReadMessage blocks for the next data frame. When the connection
	// ends it returns a *CloseError or a transport error.
	ReadMessage() ([]byte, error)

	// Close ends the connection with 1000 "User disconnect".
	Close() error
}

// Dialer opens connections. Dial must return promptly once ctx is done.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Listener receives every decoded push message.
type Listener func(domain.PushMessage)

// ListenerID identifies a registered Listener.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source for retry timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithPolicy sets the reconnect policy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metric.Collector) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// Manager owns the push-channel connection.
//
// All state transitions happen under mu. Dials and reads run in their own
// goroutines and carry the generation they started with; results from an
// older generation are discarded.
type Manager struct {
	dialer  Dialer
	baseURL string
	clock   clock.Clock
	policy  Policy
	logger  logger.Logger
	metrics *metric.Collector

	malformedLog rate.Sometimes

	mu         sync.Mutex
	state      State
	token      string
	attempt    int
	connecting bool
	gen        uint64
	conn       Conn
	cancelDial context.CancelFunc
	retry      clock.Timer
	closed     bool

	listeners      []listenerEntry
	nextListenerID ListenerID

	wg sync.WaitGroup
}

// NewManager creates an idle Manager that dials baseURL?token=<token>.
func NewManager(dialer Dialer, baseURL string, opts ...Option) *Manager {
	m := &Manager{
		dialer:       dialer,
		baseURL:      baseURL,
		clock:        clock.New(),
		policy:       DefaultPolicy(),
		logger:       logger.Nop(),
		malformedLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ============================================================================
// Queries
// ============================================================================

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the connection is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateOpen
}

// Attempt returns the reconnect attempt counter.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// ============================================================================
// Connect / Disconnect
// ============================================================================

// Connect opens the channel for token.
//
// It does nothing when a connection for token is open or being dialed.
// A different token replaces the current connection. While a retry is
// pending for the same token, the timer is cancelled and the dial happens
// now. An empty token is Disconnect.
func (m *Manager) Connect(token string) {
	if token == "" {
		m.Disconnect()
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	var stale Conn
	if token == m.token {
		if m.connecting || m.state == StateOpen {
			m.mu.Unlock()
			return
		}
		m.stopRetryLocked()
	} else {
		stale = m.teardownLocked()
		m.token = token
		m.attempt = 0
	}
	m.dialLocked()
	m.mu.Unlock()

	closeConn(stale)
}

// Disconnect closes the channel with 1000 "User disconnect", cancels any
// pending retry or dial, and forgets the token. It works in every state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	stale := m.teardownLocked()
	hadToken := m.token != ""
	m.token = ""
	m.attempt = 0
	m.setStateLocked(StateClosedClean)
	m.mu.Unlock()

	closeConn(stale)
	if hadToken {
		m.logger.Info("live channel disconnected")
	}
}

// Close disconnects and waits for background goroutines. Later calls to
// Connect are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.Disconnect()
	m.wg.Wait()
}

// teardownLocked abandons the current generation and returns the open
// connection, which the caller closes after releasing mu.
func (m *Manager) teardownLocked() Conn {
	m.gen++
	m.stopRetryLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.connecting = false

	conn := m.conn
	m.conn = nil
	return conn
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.metrics.SetConnectionState(int(s))
}

func closeConn(c Conn) {
	if c != nil {
		_ = c.Close()
	}
}

// dialLocked starts a new generation and dials it in the background.
func (m *Manager) dialLocked() {
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.connecting = true
	m.setStateLocked(StateConnecting)

	connID := domain.GenerateConnectionID(m.clock.Now())
	log := m.logger.With(
		"conn_id", connID,
		"token_fp", domain.Fingerprint(m.token),
		"attempt", m.attempt,
	)
	target := m.endpoint(m.token)

	m.metrics.IncConnectAttempt()
	m.wg.Add(1)
	go m.run(ctx, cancel, gen, target, log)
}

func (m *Manager) endpoint(token string) string {
	u, err := url.Parse(m.baseURL)
	if err != nil {
		return m.baseURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ============================================================================
// Connection lifecycle
// ============================================================================

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, gen uint64, target string, log logger.Logger) {
	defer m.wg.Done()
	defer cancel()

	log.Debug("dialing live channel")
	conn, err := m.dialer.Dial(ctx, target)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		closeConn(conn)
		return
	}
	m.connecting = false
	m.cancelDial = nil
	if err != nil {
		m.handleEndLocked(err, log)
		m.mu.Unlock()
		return
	}
	m.conn = conn
	m.attempt = 0
	m.setStateLocked(StateOpen)
	m.mu.Unlock()

	m.metrics.IncOpen()
	log.Info("live channel open")

	m.readLoop(conn, gen, log)
}

func (m *Manager) readLoop(conn Conn, gen uint64, log logger.Logger) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if gen == m.gen {
				m.conn = nil
				m.handleEndLocked(err, log)
			}
			m.mu.Unlock()
			return
		}

		msg, err := domain.ParsePushMessage(frame)
		if err != nil {
			m.metrics.IncMessageDropped()
			m.malformedLog.Do(func() {
				log.Warn("dropping malformed frame", "error", err, "size", len(frame))
			})
			continue
		}

		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		listeners := make([]listenerEntry, len(m.listeners))
		copy(listeners, m.listeners)
		m.mu.Unlock()

		m.metrics.IncMessageReceived(msg.Type)
		for _, l := range listeners {
			m.deliver(l, msg, log)
		}
	}
}

// deliver calls one listener. A panic is logged and counted, and the
// remaining listeners still run.
func (m *Manager) deliver(l listenerEntry, msg domain.PushMessage, log logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.IncListenerPanic()
			log.Error("listener panicked", "listener_id", l.id, "type", msg.Type, "panic", r)
		}
	}()
	l.fn(msg)
}

// handleEndLocked records the end of the current generation and schedules
// a reconnect when the policy asks for one.
func (m *Manager) handleEndLocked(err error, log logger.Logger) {
	if m.token == "" || !m.policy.ShouldRetry(err) {
		m.setStateLocked(StateClosedClean)
		log.Info("live channel closed", "reason", err)
		return
	}

	m.setStateLocked(StateClosedDropped)
	delay := m.policy.Delay(m.attempt)
	log.Warn("live channel dropped, reconnecting", "error", err, "delay", delay)

	gen := m.gen
	m.setStateLocked(StateAwaitingRetry)
	m.retry = m.clock.AfterFunc(delay, func() { m.onRetry(gen) })
	m.metrics.IncReconnectScheduled()
}

func (m *Manager) onRetry(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateAwaitingRetry || m.closed {
		return
	}
	m.retry = nil
	m.attempt++
	m.dialLocked()
}

// ============================================================================
// Listeners
// ============================================================================

// AddListener registers fn for every decoded message. Listeners run on the
// connection's read goroutine, in registration order.
func (m *Manager) AddListener(fn Listener) ListenerID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextListenerID++
	id := m.nextListenerID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	return id
}

// RemoveListener unregisters id. A message already being delivered still
// reaches it. It reports whether id was registered.
func (m *Manager) RemoveListener(id ListenerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.listeners {
		if l.id == id {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return true
		}
	}
	return false
}
