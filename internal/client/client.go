package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/yndnr/moonlink/internal/config"
	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/gameapi"
	"github.com/yndnr/moonlink/internal/infra/clock"
	"github.com/yndnr/moonlink/internal/live"
	"github.com/yndnr/moonlink/internal/session"
	"github.com/yndnr/moonlink/internal/telemetry/logger"
	"github.com/yndnr/moonlink/internal/telemetry/metric"
)

// API is the part of the game server the client calls.
type API interface {
	session.UserFetcher
	SignIn(ctx context.Context, username, password string) (*gameapi.AuthResponse, error)
	SignUp(ctx context.Context, username, email, password string) (*gameapi.AuthResponse, error)
}

// Deps are the collaborators of a Client.
type Deps struct {
	API    API
	Store  session.TokenStore
	Dialer live.Dialer // nil disables the live channel

	Clock   clock.Clock
	Logger  logger.Logger
	Metrics *metric.Collector

	// Closers are closed by Client.Close after everything else, in order.
	Closers []io.Closer
}

// Client combines the session coordinator and the live manager.
type Client struct {
	api     API
	session *session.Coordinator
	live    *live.Manager
	logger  logger.Logger
	closers []io.Closer

	unsubscribe func()

	mu        sync.Mutex
	liveToken string
	closed    bool
}

// New builds a Client from cfg and deps.
func New(cfg *config.Config, deps Deps) *Client {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	c := &Client{
		api:     deps.API,
		logger:  log,
		closers: deps.Closers,
	}

	c.session = session.NewCoordinator(deps.API, deps.Store,
		session.WithClock(clk),
		session.WithLogger(log.With("component", "session")),
		session.WithMetrics(deps.Metrics),
		session.WithCacheTTL(cfg.Session.CacheTTL),
	)

	if cfg.Live.Enabled && deps.Dialer != nil {
		c.live = live.NewManager(deps.Dialer, cfg.Live.URL,
			live.WithClock(clk),
			live.WithLogger(log.With("component", "live")),
			live.WithMetrics(deps.Metrics),
			live.WithPolicy(live.Policy{
				Backoff:       cfg.Live.Backoff,
				TerminalCodes: cfg.Live.TerminalCodes,
			}),
		)
		c.live.AddListener(c.session.HandleMessage)
		c.unsubscribe = c.session.Subscribe(func(session.Snapshot) { c.syncLive() })
	}
	return c
}

// syncLive follows the session token with the live channel. It reads the
// current state instead of the notified one, so out-of-order
// notifications settle on the latest state. The channel is only dialed
// once a user is cached: pushes merge into the cached user, and a token
// the server rejects never gets a socket.
func (c *Client) syncLive() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	snap := c.session.Snapshot()
	if snap.Token == "" {
		if c.liveToken != "" {
			c.liveToken = ""
			c.live.Disconnect()
		}
		return
	}
	if !snap.IsAuthenticated || snap.Token == c.liveToken {
		return
	}
	c.liveToken = snap.Token
	c.live.Connect(snap.Token)
}

// ============================================================================
// Session operations
// ============================================================================

// SignIn authenticates with credentials and logs in with the returned
// token and user.
func (c *Client) SignIn(ctx context.Context, username, password string) (*domain.UserSnapshot, error) {
	resp, err := c.api.SignIn(ctx, username, password)
	if err != nil {
		c.logger.Warn("sign in failed", "username", username, "error", err)
		return nil, err
	}
	if err := c.session.Login(ctx, resp.Token, resp.User); err != nil {
		return resp.User, err
	}
	return resp.User, nil
}

// SignUp registers an account and logs in with it.
func (c *Client) SignUp(ctx context.Context, username, email, password string) (*domain.UserSnapshot, error) {
	resp, err := c.api.SignUp(ctx, username, email, password)
	if err != nil {
		c.logger.Warn("sign up failed", "username", username, "error", err)
		return nil, err
	}
	if err := c.session.Login(ctx, resp.Token, resp.User); err != nil {
		return resp.User, err
	}
	return resp.User, nil
}

// Login installs an existing token. See session.Coordinator.Login.
func (c *Client) Login(ctx context.Context, token string, user *domain.UserSnapshot) error {
	return c.session.Login(ctx, token, user)
}

// Logout ends the session. See session.Coordinator.Logout.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Restore resumes a stored session. See session.Coordinator.Restore.
func (c *Client) Restore(ctx context.Context) (*domain.UserSnapshot, error) {
	return c.session.Restore(ctx)
}

// RefetchUser refreshes the cached user. See session.Coordinator.RefetchUser.
func (c *Client) RefetchUser(ctx context.Context) (*domain.UserSnapshot, error) {
	return c.session.RefetchUser(ctx)
}

// Snapshot returns the session state.
func (c *Client) Snapshot() session.Snapshot {
	return c.session.Snapshot()
}

// Subscribe observes session changes.
func (c *Client) Subscribe(fn func(session.Snapshot)) (unsubscribe func()) {
	return c.session.Subscribe(fn)
}

// ============================================================================
// Live channel
// ============================================================================

// OnMessage registers a listener for pushed messages. It returns false when
// the live channel is disabled.
func (c *Client) OnMessage(fn live.Listener) (live.ListenerID, bool) {
	if c.live == nil {
		return 0, false
	}
	return c.live.AddListener(fn), true
}

// LiveState returns the live connection state, or StateIdle when the
// channel is disabled.
func (c *Client) LiveState() live.State {
	if c.live == nil {
		return live.StateIdle
	}
	return c.live.State()
}

// Close disconnects the live channel, waits for background fetches, and
// closes the closers. Safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	if c.live != nil {
		c.live.Close()
	}
	c.session.Wait()

	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
