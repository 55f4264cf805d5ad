package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/infra/clock"
	"github.com/yndnr/moonlink/internal/telemetry/logger"
	"github.com/yndnr/moonlink/internal/telemetry/metric"
)

// DefaultCacheTTL is how long a fetched user is served from cache.
const DefaultCacheTTL = 30 * time.Second

// UserFetcher loads the user a token belongs to.
//
// Implementations return domain.ErrUnauthorized when the server rejects
// the token; any other error is treated as transient.
type UserFetcher interface {
	CurrentUser(ctx context.Context, token string) (*domain.UserSnapshot, error)
}

// TokenStore persists the token across runs.
type TokenStore interface {
	// Load returns the stored token, or "" when none is stored.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Token           string
	User            *domain.UserSnapshot
	CachedAt        time.Time
	Loading         bool
	IsAuthenticated bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(co *Coordinator) {
		co.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metric.Collector) Option {
	return func(co *Coordinator) {
		co.metrics = m
	}
}

// WithCacheTTL sets the user cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(co *Coordinator) {
		co.ttl = ttl
	}
}

type observer struct {
	id uint64
	fn func(Snapshot)
}

// Coordinator is the single owner of the token and the cached user.
type Coordinator struct {
	fetcher UserFetcher
	store   TokenStore
	clock   clock.Clock
	logger  logger.Logger
	metrics *metric.Collector
	ttl     time.Duration

	mu       sync.Mutex
	token    string
	user     *domain.UserSnapshot
	cachedAt time.Time
	loading  int
	// epoch changes on every login and logout. Fetch results carry the
	// epoch they started in and are discarded when it no longer matches.
	epoch uint64

	observers      []observer
	nextObserverID uint64

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewCoordinator creates a Coordinator with no session.
func NewCoordinator(fetcher UserFetcher, store TokenStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher: fetcher,
		store:   store,
		clock:   clock.New(),
		logger:  logger.Nop(),
		ttl:     DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ============================================================================
// Queries
// ============================================================================

// Snapshot returns the current session state. The user is a copy.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		Token:           c.token,
		User:            c.user.Clone(),
		CachedAt:        c.cachedAt,
		Loading:         c.loading > 0,
		IsAuthenticated: c.token != "" && c.user != nil,
	}
}

// Subscribe registers fn to receive a Snapshot after every state change.
// Observers are called synchronously, in subscription order, without
// internal locks held. The returned func unsubscribes.
func (c *Coordinator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextObserverID++
	id := c.nextObserverID
	c.observers = append(c.observers, observer{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, o := range c.observers {
				if o.id == id {
					c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Wait blocks until fetches started in the background by Login finish.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// ============================================================================
// Login / Logout
// ============================================================================

// Login installs token as the session and persists it.
//
// With a user, the user is cached immediately. Without one, the current
// user is fetched in the background and Loading stays true until it
// resolves. The fetch uses ctx, so cancelling ctx abandons it.
//
// A persistence failure is returned, but the in-memory session stays
// logged in.
func (c *Coordinator) Login(ctx context.Context, token string, user *domain.UserSnapshot) error {
	if token == "" {
		return domain.ErrInvalidArgument.WithDetails("token is required")
	}

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.token = token
	c.user = user.Clone()
	if user != nil {
		c.cachedAt = c.clock.Now()
		c.loading = 0
	} else {
		c.cachedAt = time.Time{}
		c.loading = 1
	}
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	log := c.logger.With("token_fp", domain.Fingerprint(token))
	log.Info("logged in", "user_inline", user != nil)

	var saveErr error
	if err := c.store.Save(ctx, token); err != nil {
		log.Error("persist token failed", "error", err)
		saveErr = err
	}

	notify(observers, snap)

	if user == nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			// Errors are handled inside fetch; the background fetch only logs.
			_, _ = c.fetch(ctx, token, epoch, true)
		}()
	}
	return saveErr
}

// Logout clears the session and purges the stored token. Safe to call
// when already logged out.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	changed := c.token != "" || c.user != nil || c.loading > 0
	c.clearLocked()
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	err := c.store.Clear(ctx)
	if err != nil {
		c.logger.Error("clear stored token failed", "error", err)
	}

	if changed {
		c.logger.Info("logged out")
		notify(observers, snap)
	}
	return err
}

func (c *Coordinator) clearLocked() {
	c.epoch++
	c.token = ""
	c.user = nil
	c.cachedAt = time.Time{}
	c.loading = 0
}

// forceLogout ends the session of epoch after the server rejected its
// token. A newer session is left alone.
func (c *Coordinator) forceLogout(ctx context.Context, epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	fp := domain.Fingerprint(c.token)
	c.clearLocked()
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	c.metrics.IncForcedLogout()
	c.logger.Warn("token rejected by server, logging out", "token_fp", fp)

	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("clear stored token failed", "error", err)
	}
	notify(observers, snap)
}

// ============================================================================
// Fetching
// ============================================================================

// RefetchUser fetches the current user and refreshes the cache regardless
// of its age. Concurrent calls share one request.
func (c *Coordinator) RefetchUser(ctx context.Context) (*domain.UserSnapshot, error) {
	c.mu.Lock()
	token, epoch := c.token, c.epoch
	c.mu.Unlock()

	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return c.fetch(ctx, token, epoch, false)
}

// Restore brings the session up at startup.
//
// The token comes from memory or, failing that, from the TokenStore. With
// no token it returns (nil, nil). A cached user younger than the TTL is
// returned without a request; otherwise the user is fetched. A 401 forces
// a logout and returns domain.ErrUnauthorized. Other failures keep the
// token and are returned.
func (c *Coordinator) Restore(ctx context.Context) (*domain.UserSnapshot, error) {
	c.mu.Lock()
	token, epoch := c.token, c.epoch
	c.mu.Unlock()

	if token == "" {
		stored, err := c.store.Load(ctx)
		if err != nil {
			c.logger.Error("load stored token failed", "error", err)
			return nil, err
		}
		if stored == "" {
			return nil, nil
		}

		c.mu.Lock()
		// A login may have raced the load; it wins.
		if c.token == "" && c.epoch == epoch {
			c.epoch++
			c.token = stored
			c.logger.Debug("restored stored token", "token_fp", domain.Fingerprint(stored))
		}
		token, epoch = c.token, c.epoch
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.epoch == epoch && c.user != nil && c.clock.Now().Sub(c.cachedAt) < c.ttl {
		user := c.user.Clone()
		c.mu.Unlock()

		c.metrics.IncCacheHit()
		return user, nil
	}
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil, domain.ErrNotAuthenticated.WithDetails("session changed during restore")
	}
	c.loading++
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, snap)
	return c.fetch(ctx, token, epoch, true)
}

// fetch loads the user for token and applies the result to the session of
// epoch. tracked marks fetches that hold a Loading count.
func (c *Coordinator) fetch(ctx context.Context, token string, epoch uint64, tracked bool) (*domain.UserSnapshot, error) {
	v, err, shared := c.group.Do(token, func() (any, error) {
		return c.fetcher.CurrentUser(ctx, token)
	})

	log := c.logger.With("token_fp", domain.Fingerprint(token))
	if shared {
		log.Debug("user fetch coalesced")
	}

	if err != nil {
		if domain.IsUnauthorized(err) {
			c.metrics.ObserveUserFetch(metric.FetchUnauthorized)
			c.releaseLoading(epoch, tracked)
			c.forceLogout(ctx, epoch)
			return nil, err
		}

		c.metrics.ObserveUserFetch(metric.FetchError)
		log.Warn("user fetch failed", "error", err)
		c.releaseLoading(epoch, tracked)
		return nil, err
	}
	c.metrics.ObserveUserFetch(metric.FetchOK)

	user, _ := v.(*domain.UserSnapshot)
	if user == nil {
		c.releaseLoading(epoch, tracked)
		return nil, domain.ErrTransient.WithDetails("empty user response")
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		log.Debug("discarding user fetched for a previous session")
		return nil, domain.ErrNotAuthenticated.WithDetails("session changed during fetch")
	}
	c.user = user.Clone()
	c.cachedAt = c.clock.Now()
	if tracked && c.loading > 0 {
		c.loading--
	}
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	log.Debug("user fetched", "user_id", user.ID, "level", user.Level)
	notify(observers, snap)
	return user.Clone(), nil
}

// releaseLoading drops the Loading count of a failed tracked fetch.
func (c *Coordinator) releaseLoading(epoch uint64, tracked bool) {
	if !tracked {
		return
	}

	c.mu.Lock()
	if c.epoch != epoch || c.loading == 0 {
		c.mu.Unlock()
		return
	}
	c.loading--
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, snap)
}

// ============================================================================
// Push updates
// ============================================================================

// HandleMessage is a live-channel listener. It applies hp_update messages
// and ignores every other type.
func (c *Coordinator) HandleMessage(msg domain.PushMessage) {
	if msg.Type != domain.MessageTypeHPUpdate {
		return
	}

	upd, err := msg.DecodeHPUpdate()
	if err != nil {
		c.logger.Warn("dropping undecodable hp_update", "error", err)
		return
	}
	c.ApplyHPUpdate(upd)
}

// ApplyHPUpdate merges the HP fields present in upd into the cached user
// and refreshes its timestamp. Other fields are untouched. It returns false
// when no user is cached.
func (c *Coordinator) ApplyHPUpdate(upd domain.HPUpdate) bool {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return false
	}
	c.user = c.user.WithHP(upd)
	c.cachedAt = c.clock.Now()
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, snap)
	return true
}

// ============================================================================
// Helpers
// ============================================================================

func (c *Coordinator) observersLocked() []observer {
	if len(c.observers) == 0 {
		return nil
	}
	out := make([]observer, len(c.observers))
	copy(out, c.observers)
	return out
}

func notify(observers []observer, snap Snapshot) {
	for _, o := range observers {
		// Each observer gets its own copy of the user; snap.User is never handed out.
		s := snap
		s.User = snap.User.Clone()
		o.fn(s)
	}
}
