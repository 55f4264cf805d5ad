package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/moonlink/internal/telemetry/logger"
)

// Default configuration values.
const (
	DefaultAPIBaseURL       = "http://localhost:8080/api"
	DefaultAPITimeout       = 15 * time.Second
	DefaultLiveURL          = "ws://localhost:8080/api/ws"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultCacheTTL         = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultBackoff is the reconnect delay table.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	30 * time.Second,
}

// HomeDir returns the moonlink state directory (~/.moonlink).
func HomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".moonlink"
	}
	return filepath.Join(homeDir, ".moonlink")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Default returns the default client configuration.
func Default() *Config {
	backoff := make([]time.Duration, len(DefaultBackoff))
	copy(backoff, DefaultBackoff)

	return &Config{
		API: APISection{
			BaseURL: DefaultAPIBaseURL,
			Timeout: DefaultAPITimeout,
		},
		Live: LiveSection{
			Enabled:          true,
			URL:              DefaultLiveURL,
			Backoff:          backoff,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		Session: SessionSection{
			CacheTTL: DefaultCacheTTL,
		},
		Storage: StorageSection{
			Dir:     filepath.Join(HomeDir(), "data"),
			Encrypt: true,
			KeyFile: filepath.Join(HomeDir(), "token.key"),
		},
		Log: logger.Config{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
