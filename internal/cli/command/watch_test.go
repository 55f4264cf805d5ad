package command

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/moonlink/internal/core/domain"
)

// serveLive installs a /api/ws endpoint that sends frames after the
// upgrade and then holds the connection until the client closes it.
func serveLive(e *env, frames ...string) (tokens chan string) {
	tokens = make(chan string, 4)
	upgrader := websocket.Upgrader{}
	e.server.handle("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	return tokens
}

func (e *env) liveURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/ws"
}

func waitOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q in:\n%s", want, out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatch_PrintsPushedEvents(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run("", "login", "-u", "alice", "-p", "secret"); err != nil {
		t.Fatalf("login error = %v", err)
	}
	tokens := serveLive(e,
		`{"type":"hp_update","data":{"currentHp":42}}`,
		`{"type":"chat","data":{"text":"hi"}}`,
		`not json`,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		args := append(e.baseArgs(), "--live-url", e.liveURL(), "watch")
		_, err := e.runContext(ctx, out, "", args)
		done <- err
	}()

	select {
	case tok := <-tokens:
		if tok != "tok-1" {
			t.Errorf("live token = %q, want tok-1", tok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch never dialed the live channel")
	}

	waitOutput(t, out, "hp       80/100")
	waitOutput(t, out, "hp       42/100")
	waitOutput(t, out, "message  chat")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch error = %v, want nil after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatch_JSONOutput(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run("", "login", "-u", "alice", "-p", "secret"); err != nil {
		t.Fatalf("login error = %v", err)
	}
	serveLive(e, `{"type":"hp_update","data":{"currentHp":7,"hp":120}}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		args := append(e.baseArgs(), "--live-url", e.liveURL(), "-o", "json", "watch")
		_, err := e.runContext(ctx, out, "", args)
		done <- err
	}()

	waitOutput(t, out, `"kind":"hp","currentHp":7,"hp":120`)
	waitOutput(t, out, `"kind":"message","type":"hp_update"`)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch error = %v", err)
	}
}

func TestWatch_NotLoggedIn(t *testing.T) {
	e := newEnv(t)
	args := append(e.baseArgs(), "--live-url", e.liveURL(), "watch")
	_, err := e.runContext(context.Background(), &syncBuffer{}, "", args)
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("watch error = %v, want ErrNotAuthenticated", err)
	}
}

func TestWatch_LiveDisabled(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "watch")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("watch error = %v, want ErrInvalidArgument", err)
	}
}

func TestWatch_StopsWhenSessionRevoked(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run("", "login", "-u", "alice", "-p", "secret"); err != nil {
		t.Fatalf("login error = %v", err)
	}
	tokens := serveLive(e)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		args := append(e.baseArgs(), "--live-url", e.liveURL(), "watch", "--refresh-every", "20ms")
		_, err := e.runContext(context.Background(), out, "", args)
		done <- err
	}()

	select {
	case <-tokens:
	case <-time.After(5 * time.Second):
		t.Fatal("watch never dialed the live channel")
	}
	e.server.revokeAll()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrNotAuthenticated) {
			t.Errorf("watch error = %v, want ErrNotAuthenticated", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch kept running after the token was revoked")
	}
}

func TestEventPrinter_SkipsUnchangedHP(t *testing.T) {
	out := &syncBuffer{}
	p := newEventPrinter(out, "table")

	u := &domain.UserSnapshot{Hp: 100, CurrentHp: 50}
	p.user(u)
	p.user(u.Clone())
	u2 := u.Clone()
	u2.Gold = 10
	p.user(u2)

	if got := strings.Count(out.String(), "hp "); got != 1 {
		t.Errorf("hp lines = %d, want 1:\n%s", got, out.String())
	}
}
