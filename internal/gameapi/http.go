package gameapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/infra/buildinfo"
)

// DefaultTimeout bounds a request when the caller's context has no deadline.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client communicates with the game server.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithTLSConfig sets the TLS client config used for https endpoints.
// A nil config keeps the Go defaults.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		c.client.Transport = transport
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req, token)
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req, "")
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, domain.ErrTransient.WithDetails(req.Method + " " + req.URL.Path).WithCause(err)
	}
	c.logger.Debug("api request", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// addHeaders adds authentication and common headers.
func (c *Client) addHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
}

// statusMapper turns a non-2xx status into a domain error.
type statusMapper func(status int, message string) error

// authenticatedStatus maps responses of calls made with a bearer token.
func authenticatedStatus(status int, message string) error {
	if status == http.StatusUnauthorized {
		return domain.ErrUnauthorized.WithDetails(message)
	}
	return transientStatus(status, message)
}

// credentialStatus maps responses of sign-in and sign-up.
func credentialStatus(status int, message string) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict:
		return domain.ErrSignInRejected.WithDetails(message)
	}
	return transientStatus(status, message)
}

func transientStatus(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return domain.ErrTransient.WithDetails(fmt.Sprintf("status %d: %s", status, message))
}

// parseResponse decodes a JSON body into target, or maps an error status.
func parseResponse(resp *http.Response, target any, mapStatus statusMapper) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, errorMessage(resp.Body))
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return domain.ErrTransient.WithDetails("parse response").WithCause(err)
		}
	}
	return nil
}

// errorMessage extracts the server's message from {"error": "..."}, a bare
// JSON string, or plain text.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var obj struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Error != "" {
			return obj.Error
		}
		return obj.Message
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
