package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fetch results recorded by ObserveUserFetch.
const (
	FetchOK           = "ok"
	FetchUnauthorized = "unauthorized"
	FetchError        = "error"
)

// Collector holds the session and live-connection metrics.
type Collector struct {
	connectAttempts     prometheus.Counter
	opens               prometheus.Counter
	reconnectsScheduled prometheus.Counter
	messagesReceived    *prometheus.CounterVec
	messagesDropped     prometheus.Counter
	listenerPanics      prometheus.Counter
	connectionState     prometheus.Gauge

	userFetches   *prometheus.CounterVec
	cacheHits     prometheus.Counter
	forcedLogouts prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg.
// A nil reg leaves the metrics unregistered, which tests use.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "live",
			Name:      "connect_attempts_total",
			Help:      "WebSocket dials started",
		}),
		opens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "live",
			Name:      "opens_total",
			Help:      "WebSocket connections that reached the open state",
		}),
		reconnectsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "live",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect timers armed after an unexpected close",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "live",
			Name:      "messages_received_total",
			Help:      "Push messages delivered to listeners, by type",
		}, []string{"type"}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "live",
			Name:      "messages_dropped_total",
			Help:      "Inbound frames dropped as malformed",
		}),
		listenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "live",
			Name:      "listener_panics_total",
			Help:      "Listener calls that panicked and were recovered",
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "live",
			Name:      "connection_state",
			Help:      "Current connection state (0 idle, 1 connecting, 2 open, 3 closed clean, 4 closed dropped, 5 awaiting retry)",
		}),
		userFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "user_fetches_total",
			Help:      "Current-user fetches, by result",
		}, []string{"result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "cache_hits_total",
			Help:      "Restores served from the cached user snapshot",
		}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "forced_logouts_total",
			Help:      "Logouts forced by an unauthorized response",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.connectAttempts,
			c.opens,
			c.reconnectsScheduled,
			c.messagesReceived,
			c.messagesDropped,
			c.listenerPanics,
			c.connectionState,
			c.userFetches,
			c.cacheHits,
			c.forcedLogouts,
		)
	}
	return c
}

// IncConnectAttempt records a dial.
func (c *Collector) IncConnectAttempt() {
	if c != nil {
		c.connectAttempts.Inc()
	}
}

// IncOpen records a successful open.
func (c *Collector) IncOpen() {
	if c != nil {
		c.opens.Inc()
	}
}

// IncReconnectScheduled records an armed retry timer.
func (c *Collector) IncReconnectScheduled() {
	if c != nil {
		c.reconnectsScheduled.Inc()
	}
}

// IncMessageReceived records a delivered push message.
func (c *Collector) IncMessageReceived(msgType string) {
	if c != nil {
		c.messagesReceived.WithLabelValues(msgType).Inc()
	}
}

// IncMessageDropped records a malformed frame.
func (c *Collector) IncMessageDropped() {
	if c != nil {
		c.messagesDropped.Inc()
	}
}

// IncListenerPanic records a recovered listener panic.
func (c *Collector) IncListenerPanic() {
	if c != nil {
		c.listenerPanics.Inc()
	}
}

// SetConnectionState records the connection state ordinal.
func (c *Collector) SetConnectionState(state int) {
	if c != nil {
		c.connectionState.Set(float64(state))
	}
}

// ObserveUserFetch records a fetch outcome (FetchOK, FetchUnauthorized, FetchError).
func (c *Collector) ObserveUserFetch(result string) {
	if c != nil {
		c.userFetches.WithLabelValues(result).Inc()
	}
}

// IncCacheHit records a restore served from cache.
func (c *Collector) IncCacheHit() {
	if c != nil {
		c.cacheHits.Inc()
	}
}

// IncForcedLogout records a logout forced by the server.
func (c *Collector) IncForcedLogout() {
	if c != nil {
		c.forcedLogouts.Inc()
	}
}
