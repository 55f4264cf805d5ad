package config

import (
	"time"

	"github.com/yndnr/moonlink/internal/telemetry/logger"
)

// Config is the complete client configuration.
type Config struct {
	API     APISection     `koanf:"api"`
	Live    LiveSection    `koanf:"live"`
	Session SessionSection `koanf:"session"`
	Storage StorageSection `koanf:"storage"`
	TLS     TLSSection     `koanf:"tls"`
	Log     logger.Config  `koanf:"log"`
	Metrics MetricsSection `koanf:"metrics"`
}

// APISection configures the REST API client.
type APISection struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string `koanf:"base_url"`
	// Timeout bounds every API request.
	Timeout time.Duration `koanf:"timeout"`
}

// LiveSection configures the push channel.
type LiveSection struct {
	// Enabled turns the live connection on after login.
	Enabled bool `koanf:"enabled"`
	// URL is the WebSocket endpoint; the token is appended as ?token=.
	URL string `koanf:"url"`
	// Backoff is the reconnect delay table indexed by attempt.
	Backoff []time.Duration `koanf:"backoff"`
	// TerminalCodes are close codes after which no reconnect is attempted.
	// A clean 1000 close is always terminal.
	TerminalCodes []int `koanf:"terminal_codes"`
	// HandshakeTimeout bounds one dial.
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
}

// SessionSection configures the session cache.
type SessionSection struct {
	// CacheTTL is how long a fetched user snapshot is reused.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// StorageSection configures durable token storage.
type StorageSection struct {
	// Dir is the badger data directory.
	Dir string `koanf:"dir"`
	// Ephemeral keeps the token in memory only.
	Ephemeral bool `koanf:"ephemeral"`
	// Encrypt seals the token at rest.
	Encrypt bool `koanf:"encrypt"`
	// KeyFile holds the random sealing key (or the salt when Passphrase is set).
	KeyFile string `koanf:"key_file"`
	// Passphrase derives the sealing key instead of a random key.
	Passphrase string `koanf:"passphrase"`
}

// MetricsSection configures the Prometheus endpoint of long-running commands.
type MetricsSection struct {
	// Address is the listen address for /metrics; empty disables it.
	Address string `koanf:"address"`
}

// TLSSection adds trust roots for https and wss endpoints.
type TLSSection struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `koanf:"ca_file"`
	// CADir is a directory of .pem/.crt/.cer files trusted the same way.
	CADir string `koanf:"ca_dir"`
}
