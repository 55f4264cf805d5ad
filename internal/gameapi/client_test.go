package gameapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/moonlink/internal/core/domain"
)

const testUserJSON = `{
	"id": "7f1c2c1e-0000-4000-8000-000000000001",
	"username": "aria",
	"email": "aria@example.com",
	"hp": 120,
	"currentHp": 95,
	"attack": 14,
	"defense": 9,
	"level": 4,
	"gold": 310,
	"exp": 1250,
	"freeStats": 2,
	"createdAt": "2025-03-01T10:00:00Z",
	"avatar": {"id": "a1", "image": "elf.png", "private": false},
	"locationSlug": "moonshine",
	"inFight": false
}`

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"with http prefix", "http://localhost:8080/api", "http://localhost:8080/api"},
		{"with https prefix", "https://game.example/api/", "https://game.example/api"},
		{"without prefix", "localhost:8080/api", "http://localhost:8080/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewClient(tt.baseURL).BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_CurrentUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if r.URL.Path != "/api/user/me" {
			t.Errorf("path = %q, want /api/user/me", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-1")
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "moonlink/") {
			t.Errorf("User-Agent = %q, want moonlink/ prefix", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testUserJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL + "/api")
	user, err := client.CurrentUser(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}

	if user.Username != "aria" {
		t.Errorf("Username = %q, want aria", user.Username)
	}
	if user.CurrentHp != 95 || user.Hp != 120 {
		t.Errorf("HP = %d/%d, want 95/120", user.CurrentHp, user.Hp)
	}
	if user.Avatar == nil || user.Avatar.Image != "elf.png" {
		t.Errorf("Avatar = %+v", user.Avatar)
	}
	if user.LocationSlug == nil || *user.LocationSlug != "moonshine" {
		t.Errorf("LocationSlug = %v", user.LocationSlug)
	}
	if user.InFight == nil || *user.InFight {
		t.Errorf("InFight = %v, want false", user.InFight)
	}
	if !user.CreatedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", user.CreatedAt)
	}
}

func TestClient_CurrentUser_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     *domain.DomainError
		wantDetails string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"unauthorized"}`, domain.ErrUnauthorized, "unauthorized"},
		{"server error", http.StatusInternalServerError, `{"error":"internal server error"}`, domain.ErrTransient, "status 500: internal server error"},
		{"bad gateway text", http.StatusBadGateway, "upstream down\n", domain.ErrTransient, "status 502: upstream down"},
		{"empty body", http.StatusServiceUnavailable, "", domain.ErrTransient, "status 503: Service Unavailable"},
		{"not found", http.StatusNotFound, `{"error":"user not found"}`, domain.ErrTransient, "status 404: user not found"},
		{"bad json", http.StatusOK, `{"id":`, domain.ErrTransient, "parse response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL).CurrentUser(context.Background(), "tok")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CurrentUser() error = %v, want %v", err, tt.wantErr)
			}
			var de *domain.DomainError
			if errors.As(err, &de) && de.Details != tt.wantDetails {
				t.Errorf("Details = %q, want %q", de.Details, tt.wantDetails)
			}
		})
	}
}

func TestClient_CurrentUser_NoToken(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").CurrentUser(context.Background(), "")
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("CurrentUser(\"\") error = %v, want ErrNotAuthenticated", err)
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).CurrentUser(context.Background(), "tok")
	if !errors.Is(err, domain.ErrTransient) {
		t.Errorf("CurrentUser() error = %v, want ErrTransient", err)
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		t.Error("transport error must not look like ErrUnauthorized")
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond))
	if _, err := client.CurrentUser(context.Background(), "tok"); !errors.Is(err, domain.ErrTransient) {
		t.Errorf("CurrentUser() error = %v, want ErrTransient", err)
	}
}

func TestClient_SignIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/signin" {
			t.Errorf("request = %s %s, want POST /api/auth/signin", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("sign-in must not send a bearer token")
		}

		var req SignInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if req.Username != "aria" || req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"eyJ.tok","user":` + testUserJSON + `}`))
	}))
	defer server.Close()

	client := NewClient(server.URL + "/api")

	resp, err := client.SignIn(context.Background(), "aria", "hunter2")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if resp.Token != "eyJ.tok" {
		t.Errorf("Token = %q, want eyJ.tok", resp.Token)
	}
	if resp.User == nil || resp.User.Username != "aria" {
		t.Errorf("User = %+v", resp.User)
	}

	_, err = client.SignIn(context.Background(), "aria", "wrong")
	if !errors.Is(err, domain.ErrSignInRejected) {
		t.Errorf("SignIn(wrong) error = %v, want ErrSignInRejected", err)
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		t.Error("rejected credentials must not map to ErrUnauthorized")
	}

	if _, err := client.SignIn(context.Background(), "", "x"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("SignIn(\"\") error = %v, want ErrInvalidArgument", err)
	}
}

func TestClient_SignUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/signup" {
			t.Errorf("path = %q, want /auth/signup", r.URL.Path)
		}
		var req SignUpRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Username {
		case "taken":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"user already exists"}`))
		case "notoken":
			w.Write([]byte(`{"user":` + testUserJSON + `}`))
		default:
			w.Write([]byte(`{"token":"tok-new","user":` + testUserJSON + `}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	resp, err := client.SignUp(ctx, "aria", "aria@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if resp.Token != "tok-new" {
		t.Errorf("Token = %q, want tok-new", resp.Token)
	}

	_, err = client.SignUp(ctx, "taken", "t@example.com", "pw")
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Code != domain.ErrSignInRejected.Code || de.Details != "user already exists" {
		t.Errorf("SignUp(taken) error = %v, want ErrSignInRejected with server message", err)
	}

	if _, err := client.SignUp(ctx, "notoken", "n@example.com", "pw"); !errors.Is(err, domain.ErrTransient) {
		t.Errorf("SignUp(notoken) error = %v, want ErrTransient", err)
	}

	if _, err := client.SignUp(ctx, "aria", "", "pw"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("SignUp(no email) error = %v, want ErrInvalidArgument", err)
	}
}

func TestClient_TLSConfig(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testUserJSON))
	}))
	defer server.Close()

	// The test server's certificate is not in the system roots.
	_, err := NewClient(server.URL+"/api").CurrentUser(context.Background(), "tok-1")
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("CurrentUser() without CA error = %v, want ErrTransient", err)
	}

	trusted := server.Client().Transport.(*http.Transport).TLSClientConfig
	client := NewClient(server.URL+"/api", WithTLSConfig(trusted), WithTimeout(5*time.Second))
	if _, err := client.CurrentUser(context.Background(), "tok-1"); err != nil {
		t.Errorf("CurrentUser() with CA error = %v", err)
	}
}
