package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/yndnr/moonlink/internal/cli/output"
	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/live"
	"github.com/yndnr/moonlink/internal/session"
)

// Prompt is printed before every input line.
const Prompt = "moonlink> "

// Client is the part of client.Client the shell drives.
type Client interface {
	SignIn(ctx context.Context, username, password string) (*domain.UserSnapshot, error)
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (*domain.UserSnapshot, error)
	RefetchUser(ctx context.Context) (*domain.UserSnapshot, error)
	Snapshot() session.Snapshot
	LiveState() live.State
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	client    Client
	formatter output.Formatter
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// WithFormatter sets how users and status are printed.
func WithFormatter(f output.Formatter) Option {
	return func(r *REPL) {
		r.formatter = f
	}
}

// New creates a new REPL instance.
func New(cl Client, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		client:    cl,
		formatter: &output.TableFormatter{},
		completer: NewCompleter(),
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads commands until exit, EOF or ctx cancellation. History is
// loaded before the first prompt and saved on return.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: history not loaded: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: history not saved: %v\n", err)
		}
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		reader := bufio.NewReader(r.input)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-done:
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.output, Prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.output)
			return nil
		case err := <-readErr:
			fmt.Fprintln(r.output)
			if err == io.EOF {
				return nil
			}
			return err
		case line = <-lines:
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		if line == "exit" || line == "quit" {
			return nil
		}
		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "login":
		if len(args) != 2 {
			return domain.ErrInvalidArgument.WithDetails("usage: " + commandHelp["login"])
		}
		user, err := r.client.SignIn(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return r.formatter.Format(r.output, user)

	case "logout":
		if err := r.client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.output, "Logged out.")
		return nil

	case "whoami":
		user, err := r.client.Restore(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrNotAuthenticated.WithDetails("use login first")
		}
		return r.formatter.Format(r.output, user)

	case "refresh":
		user, err := r.client.RefetchUser(ctx)
		if err != nil {
			return err
		}
		return r.formatter.Format(r.output, user)

	case "status":
		return r.formatter.Format(r.output, r.status())

	case "history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
		}
		return nil

	case "help":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		for _, name := range r.completer.Complete(prefix) {
			if h, ok := commandHelp[name]; ok {
				fmt.Fprintf(r.output, "  %s\n", h)
			}
		}
		return nil

	default:
		if s := r.completer.Complete(cmd); len(s) > 0 {
			return fmt.Errorf("unknown command %q (did you mean %s?)", cmd, strings.Join(s, ", "))
		}
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

// statusView is the printable session and live state.
type statusView struct {
	Authenticated bool      `json:"authenticated"`
	Loading       bool      `json:"loading"`
	Username      string    `json:"username,omitempty"`
	Token         string    `json:"token,omitempty"`
	CachedAt      time.Time `json:"cachedAt"`
	Live          string    `json:"live"`
}

func (r *REPL) status() statusView {
	snap := r.client.Snapshot()
	v := statusView{
		Authenticated: snap.IsAuthenticated,
		Loading:       snap.Loading,
		CachedAt:      snap.CachedAt,
		Live:          r.client.LiveState().String(),
	}
	if snap.User != nil {
		v.Username = snap.User.Username
	}
	if snap.Token != "" {
		v.Token = domain.Fingerprint(snap.Token)
	}
	return v
}
