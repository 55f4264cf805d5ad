package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/moonlink/internal/cli/output"
	"github.com/yndnr/moonlink/internal/config"
	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/infra/confloader"
	"github.com/yndnr/moonlink/internal/infra/shutdown"
	"github.com/yndnr/moonlink/internal/session"
	"github.com/yndnr/moonlink/internal/telemetry/logger"
	"github.com/yndnr/moonlink/internal/telemetry/metric"
)

const watchShutdownTimeout = 10 * time.Second

// WatchCommand keeps the session alive and prints pushed events.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Connect the live channel and print pushed events until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9100)",
			},
			&cli.DurationFlag{
				Name:  "refresh-every",
				Usage: "Refetch the user on this interval (0 disables)",
			},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	cfg := GetConfig(c)
	log := GetLogger(c).With("command", "watch")
	if !cfg.Live.Enabled {
		return domain.ErrInvalidArgument.WithDetails("live channel is disabled")
	}

	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	addr := cfg.Metrics.Address
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}

	reg := metric.NewRegistry()
	cl, err := openClientWith(c, cfg, reg)
	if err != nil {
		return err
	}

	sh := shutdown.NewHandler(watchShutdownTimeout)
	sh.OnShutdown(func(context.Context) error { return cl.Close() })

	// The printer is attached before the restore: the live channel opens as
	// soon as the user is cached and may push before restoreUser returns.
	printer := newEventPrinter(c.App.Writer, format)
	var started, ended atomic.Bool
	unsubscribe := cl.Subscribe(func(s session.Snapshot) {
		if !s.IsAuthenticated {
			if started.Load() && ended.CompareAndSwap(false, true) {
				log.Warn("session ended, stopping")
				sh.Trigger()
			}
			return
		}
		printer.user(s.User)
	})
	sh.OnShutdown(func(context.Context) error {
		unsubscribe()
		return nil
	})
	cl.OnMessage(printer.message)

	if _, err := restoreUser(c.Context, cl); err != nil {
		return errors.Join(err, sh.Wait(cancelled()))
	}
	started.Store(true)
	snap := cl.Snapshot()
	if !snap.IsAuthenticated {
		_ = sh.Wait(cancelled())
		return domain.ErrNotAuthenticated.WithDetails("session ended by the server")
	}
	printer.user(snap.User)

	if addr != "" {
		stop, err := serveMetrics(addr, reg, log)
		if err != nil {
			_ = sh.Wait(cancelled())
			return err
		}
		sh.OnShutdown(stop)
	}

	if path := watchedConfigPath(c); path != "" {
		stop, err := watchLogLevel(c, path, log)
		if err != nil {
			log.Warn("config reload disabled", "path", path, "error", err)
		} else {
			sh.OnShutdown(stop)
		}
	}

	if every := c.Duration("refresh-every"); every > 0 {
		ctx, cancel := context.WithCancel(c.Context)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			refreshLoop(ctx, cl.RefetchUser, every, log)
		}()
		sh.OnShutdown(func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		})
	}

	log.Info("watching", "live_url", cfg.Live.URL)
	if err := sh.Wait(c.Context); err != nil {
		return err
	}
	if ended.Load() {
		return domain.ErrNotAuthenticated.WithDetails("session ended by the server")
	}
	return nil
}

func cancelled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// serveMetrics starts the /metrics endpoint and returns its shutdown hook.
func serveMetrics(addr string, reg *prometheus.Registry, log logger.Logger) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{
		Handler:           metric.NewServeMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())
	return srv.Shutdown, nil
}

// watchedConfigPath returns the config file to follow: the --config value,
// or the default file when it exists.
func watchedConfigPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.DefaultConfigPath()
	}
	return ""
}

// watchLogLevel reloads the config file on change and applies its log
// level. Other settings need a restart.
func watchLogLevel(c *cli.Context, path string, log logger.Logger) (func(context.Context) error, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(logger.ToSlog(log)))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(p string) {
		reloaded, err := config.Load(p, flags.Overrides)
		if err != nil {
			log.Warn("ignoring invalid config change", "path", p, "error", err)
			return
		}
		if reloaded.Log.Level != logger.GetLevel() {
			logger.SetLevel(reloaded.Log.Level)
			log.Info("log level changed", "level", logger.GetLevel())
		}
	})
	w.StartAsync()
	return func(context.Context) error { return w.Stop() }, nil
}

func refreshLoop(ctx context.Context, refetch func(context.Context) (*domain.UserSnapshot, error), every time.Duration, log logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := refetch(ctx); err != nil && ctx.Err() == nil {
				log.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// ============================================================================
// Event output
// ============================================================================

// watchEvent is one line of watch output.
type watchEvent struct {
	Time      time.Time       `json:"time"`
	Kind      string          `json:"kind"`
	Type      string          `json:"type,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CurrentHp *int            `json:"currentHp,omitempty"`
	Hp        *int            `json:"hp,omitempty"`
}

// eventPrinter serialises output from listener and observer goroutines and
// prints HP only when it changed.
type eventPrinter struct {
	mu        sync.Mutex
	w         io.Writer
	format    output.Format
	formatter output.Formatter
	lastHP    [2]int
	seenUser  bool
}

func newEventPrinter(w io.Writer, format output.Format) *eventPrinter {
	return &eventPrinter{w: w, format: format, formatter: output.NewFormatter(format)}
}

func (p *eventPrinter) message(msg domain.PushMessage) {
	p.emit(watchEvent{Time: time.Now(), Kind: "message", Type: msg.Type, Data: msg.Data})
}

func (p *eventPrinter) user(u *domain.UserSnapshot) {
	if u == nil {
		return
	}
	p.mu.Lock()
	hp := [2]int{u.CurrentHp, u.Hp}
	if p.seenUser && hp == p.lastHP {
		p.mu.Unlock()
		return
	}
	p.seenUser = true
	p.lastHP = hp
	p.mu.Unlock()

	p.emit(watchEvent{Time: time.Now(), Kind: "hp", CurrentHp: &hp[0], Hp: &hp[1]})
}

func (p *eventPrinter) emit(ev watchEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.format {
	case output.FormatJSON:
		line, err := json.Marshal(ev)
		if err == nil {
			fmt.Fprintf(p.w, "%s\n", line)
		}
	case output.FormatYAML:
		fmt.Fprintln(p.w, "---")
		_ = p.formatter.Format(p.w, ev)
	default:
		ts := ev.Time.Format("15:04:05")
		if ev.Kind == "hp" {
			fmt.Fprintf(p.w, "%s  hp       %d/%d\n", ts, *ev.CurrentHp, *ev.Hp)
			return
		}
		fmt.Fprintf(p.w, "%s  message  %s %s\n", ts, ev.Type, ev.Data)
	}
}
