package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/moonlink/internal/cli/output"
	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/live"
	"github.com/yndnr/moonlink/internal/session"
)

type fakeClient struct {
	user     *domain.UserSnapshot
	token    string
	signErr  error
	restores int
	refetch  int
}

func (f *fakeClient) SignIn(ctx context.Context, username, password string) (*domain.UserSnapshot, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	f.user = &domain.UserSnapshot{ID: "u1", Username: username, Hp: 100, CurrentHp: 90}
	f.token = "tok-" + username
	return f.user.Clone(), nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.user, f.token = nil, ""
	return nil
}

func (f *fakeClient) Restore(ctx context.Context) (*domain.UserSnapshot, error) {
	f.restores++
	return f.user.Clone(), nil
}

func (f *fakeClient) RefetchUser(ctx context.Context) (*domain.UserSnapshot, error) {
	f.refetch++
	if f.user == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return f.user.Clone(), nil
}

func (f *fakeClient) Snapshot() session.Snapshot {
	return session.Snapshot{
		Token:           f.token,
		User:            f.user.Clone(),
		CachedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IsAuthenticated: f.user != nil,
	}
}

func (f *fakeClient) LiveState() live.State {
	if f.user == nil {
		return live.StateClosedClean
	}
	return live.StateOpen
}

func runREPL(t *testing.T, cl Client, input string, opts ...Option) string {
	t.Helper()
	out := &bytes.Buffer{}
	all := append([]Option{WithIO(strings.NewReader(input), out)}, opts...)
	if err := New(cl, all...).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out.String()
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\n"},
		{"quit command", "quit\n"},
		{"EOF", ""},
		{"exit without newline", "exit"},
		{"input after exit", "exit\nwhoami\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := &fakeClient{}
			runREPL(t, cl, tt.input)
			if cl.restores != 0 {
				t.Errorf("restores = %d, want 0", cl.restores)
			}
		})
	}
}

func TestREPL_Run_EmptyLines(t *testing.T) {
	out := runREPL(t, &fakeClient{}, "\n\n\nexit\n")
	if prompts := strings.Count(out, Prompt); prompts < 4 {
		t.Errorf("expected at least 4 prompts, got %d", prompts)
	}
}

func TestREPL_Run_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns stands in for an idle terminal.
	pr, pw := io.Pipe()
	defer pw.Close()

	r := New(&fakeClient{}, WithIO(pr, &bytes.Buffer{}))
	if err := r.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestREPL_LoginWhoamiLogout(t *testing.T) {
	cl := &fakeClient{}
	out := runREPL(t, cl, "login alice secret\nwhoami\nstatus\nlogout\nwhoami\n", WithFormatter(&output.JSONFormatter{}))

	if !strings.Contains(out, `"username": "alice"`) {
		t.Errorf("output missing user:\n%s", out)
	}
	if !strings.Contains(out, `"live": "open"`) || !strings.Contains(out, `"authenticated": true`) {
		t.Errorf("status missing live/authenticated:\n%s", out)
	}
	if strings.Contains(out, "tok-alice") {
		t.Errorf("status printed the raw token:\n%s", out)
	}
	if !strings.Contains(out, "Logged out.") {
		t.Errorf("output missing logout:\n%s", out)
	}
	if !strings.Contains(out, "Error: ") || !strings.Contains(out, "use login first") {
		t.Errorf("whoami after logout should fail:\n%s", out)
	}
	if cl.restores != 2 {
		t.Errorf("restores = %d, want 2", cl.restores)
	}
}

func TestREPL_LoginErrors(t *testing.T) {
	cl := &fakeClient{signErr: domain.ErrSignInRejected.WithDetails("Invalid credentials")}
	out := runREPL(t, cl, "login alice\nlogin alice wrong\n")

	if !strings.Contains(out, "usage: login USERNAME PASSWORD") {
		t.Errorf("missing usage error:\n%s", out)
	}
	if !strings.Contains(out, "Invalid credentials") {
		t.Errorf("missing rejection:\n%s", out)
	}
}

func TestREPL_Refresh(t *testing.T) {
	cl := &fakeClient{}
	runREPL(t, cl, "login alice secret\nrefresh\n")
	if cl.refetch != 1 {
		t.Errorf("refetch = %d, want 1", cl.refetch)
	}
}

func TestREPL_UnknownCommand(t *testing.T) {
	out := runREPL(t, &fakeClient{}, "who\nfrobnicate\n")
	if !strings.Contains(out, `unknown command "who" (did you mean whoami?)`) {
		t.Errorf("missing suggestion:\n%s", out)
	}
	if !strings.Contains(out, `unknown command "frobnicate" (try help)`) {
		t.Errorf("missing help hint:\n%s", out)
	}
}

func TestREPL_Help(t *testing.T) {
	out := runREPL(t, &fakeClient{}, "help\nhelp re\n")
	for _, want := range []string{"login USERNAME PASSWORD", "status", "refresh"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q:\n%s", want, out)
		}
	}
}

func TestREPL_HistoryPersisted(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")

	runREPL(t, &fakeClient{}, "login alice secret\nstatus\n", WithHistory(NewHistory(file)))

	h := NewHistory(file)
	if err := h.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := h.Entries()
	want := []string{"login", "status"}
	if len(got) != len(want) {
		t.Fatalf("Entries() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	out := runREPL(t, &fakeClient{}, "history\n", WithHistory(h))
	if !strings.Contains(out, "   1  login") || !strings.Contains(out, "   2  status") {
		t.Errorf("history output:\n%s", out)
	}
}

func TestREPL_ErrorsAreReported(t *testing.T) {
	cl := &fakeClient{}
	out := runREPL(t, cl, "refresh\n")
	if !strings.Contains(out, "Error: ") {
		t.Errorf("refresh without session should print an error:\n%s", out)
	}
	var de *domain.DomainError
	if !errors.As(domain.ErrNotAuthenticated, &de) {
		t.Fatal("ErrNotAuthenticated is not a DomainError")
	}
	if !strings.Contains(out, de.Code) {
		t.Errorf("error output missing code %s:\n%s", de.Code, out)
	}
}
