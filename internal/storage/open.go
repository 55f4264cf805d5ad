package storage

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// Options selects the engine and sealing for OpenTokenStore.
type Options struct {
	// Dir is the Badger directory. Ignored when Ephemeral is set.
	Dir string
	// Ephemeral keeps the token in memory.
	Ephemeral bool
	// Encrypt seals the token with a key from KeyFile.
	Encrypt bool
	// KeyFile holds the random key, or the Argon2id salt when Passphrase is set.
	KeyFile string
	// Passphrase derives the key instead of a random key file.
	Passphrase string

	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// OpenTokenStore builds a TokenStore from opts.
func OpenTokenStore(opts Options) (*TokenStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sealer, err := openSealer(opts)
	if err != nil {
		return nil, err
	}

	if opts.Ephemeral {
		return NewTokenStore(NewMemoryEngine(), sealer, logger), nil
	}

	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	engine, err := NewBadgerEngine(DefaultBadgerConfig(opts.Dir), logger)
	if err != nil {
		return nil, err
	}
	if opts.Registerer != nil {
		engine.RegisterMetrics(opts.Registerer)
	}
	return NewTokenStore(engine, sealer, logger), nil
}

func openSealer(opts Options) (*Sealer, error) {
	if !opts.Encrypt {
		return NewSealer(nil)
	}

	var (
		key []byte
		err error
	)
	if opts.Passphrase != "" {
		key, err = DeriveKey(opts.Passphrase, opts.KeyFile)
	} else {
		key, err = LoadOrCreateKey(opts.KeyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("token key: %w", err)
	}
	return NewSealer(key)
}
