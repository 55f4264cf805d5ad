package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/moonlink/internal/core/domain"
)

// gameServer is a fake Moonshine API with one account.
type gameServer struct {
	*httptest.Server

	mu       sync.Mutex
	user     domain.UserSnapshot
	password string
	tokens   map[string]bool
	issued   int
	handlers map[string]http.HandlerFunc
}

func newGameServer(t *testing.T) *gameServer {
	t.Helper()
	g := &gameServer{
		user:     domain.UserSnapshot{ID: "u1", Username: "alice", Email: "alice@example.com", Hp: 100, CurrentHp: 80, Level: 3},
		password: "secret",
		tokens:   make(map[string]bool),
		handlers: make(map[string]http.HandlerFunc),
	}
	g.handlers["/api/auth/signin"] = g.signIn
	g.handlers["/api/auth/signup"] = g.signUp
	g.handlers["/api/user/me"] = g.me

	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		h, ok := g.handlers[r.URL.Path]
		g.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(g.Close)
	return g
}

func (g *gameServer) handle(path string, h http.HandlerFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[path] = h
}

func (g *gameServer) issueLocked() string {
	g.issued++
	tok := "tok-" + string(rune('0'+g.issued))
	g.tokens[tok] = true
	return tok
}

func (g *gameServer) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if req.Username != g.user.Username || req.Password != g.password {
		jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"token": g.issueLocked(), "user": g.user})
}

func (g *gameServer) signUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if req.Username == g.user.Username {
		jsonResponse(w, http.StatusConflict, map[string]string{"error": "Username already taken"})
		return
	}
	user := domain.UserSnapshot{ID: "u2", Username: req.Username, Email: req.Email, Hp: 100, CurrentHp: 100, Level: 1}
	jsonResponse(w, http.StatusCreated, map[string]any{"token": g.issueLocked(), "user": user})
}

func (g *gameServer) me(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.tokens[token] {
		jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	jsonResponse(w, http.StatusOK, g.user)
}

// revokeAll invalidates every issued token.
func (g *gameServer) revokeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = make(map[string]bool)
}

// allow accepts token as if the server had issued it.
func (g *gameServer) allow(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens[token] = true
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// syncBuffer is a bytes.Buffer safe for the watch goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// env is one isolated CLI installation: its own config file, token store
// and key file, pointed at a fake game server.
type env struct {
	t      *testing.T
	server *gameServer
	dir    string
	config string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log:\n  level: error\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &env{t: t, server: newGameServer(t), dir: dir, config: cfgPath}
}

func (e *env) baseArgs() []string {
	return []string{
		"moonlink",
		"--config", e.config,
		"--api-url", e.server.URL + "/api",
		"--data-dir", filepath.Join(e.dir, "data"),
		"--key-file", filepath.Join(e.dir, "token.key"),
	}
}

// run executes one CLI invocation with the live channel off.
func (e *env) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	full := append(e.baseArgs(), "--no-live")
	full = append(full, args...)
	return e.runContext(context.Background(), &syncBuffer{}, stdin, full)
}

func (e *env) runContext(ctx context.Context, out *syncBuffer, stdin string, args []string) (string, error) {
	app := App()
	app.Writer = out
	app.ErrWriter = &syncBuffer{}
	app.Reader = strings.NewReader(stdin)
	err := app.RunContext(ctx, args)
	return out.String(), err
}
