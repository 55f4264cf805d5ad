package client

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/moonlink/internal/config"
	"github.com/yndnr/moonlink/internal/gameapi"
	"github.com/yndnr/moonlink/internal/infra/tlsroots"
	"github.com/yndnr/moonlink/internal/live"
	"github.com/yndnr/moonlink/internal/storage"
	"github.com/yndnr/moonlink/internal/telemetry/logger"
	"github.com/yndnr/moonlink/internal/telemetry/metric"
)

// Open builds a Client with the real API client, token store and
// WebSocket dialer described by cfg. A nil reg leaves metrics unregistered.
func Open(cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	slogger := logger.ToSlog(log)

	tlsConf, err := tlsroots.ClientConfig(cfg.TLS.CAFile, cfg.TLS.CADir)
	if err != nil {
		return nil, err
	}

	store, err := storage.OpenTokenStore(storage.Options{
		Dir:        cfg.Storage.Dir,
		Ephemeral:  cfg.Storage.Ephemeral,
		Encrypt:    cfg.Storage.Encrypt,
		KeyFile:    cfg.Storage.KeyFile,
		Passphrase: cfg.Storage.Passphrase,
		Logger:     slogger.With("component", "storage"),
		Registerer: reg,
	})
	if err != nil {
		return nil, err
	}

	api := gameapi.NewClient(cfg.API.BaseURL,
		gameapi.WithTimeout(cfg.API.Timeout),
		gameapi.WithTLSConfig(tlsConf),
		gameapi.WithLogger(slogger.With("component", "gameapi")),
	)

	var dialer live.Dialer
	if cfg.Live.Enabled {
		dialer = live.NewWebSocketDialer(cfg.Live.HandshakeTimeout, live.WithTLSConfig(tlsConf))
	}

	return New(cfg, Deps{
		API:     api,
		Store:   store,
		Dialer:  dialer,
		Logger:  log,
		Metrics: metric.NewCollector(reg),
		Closers: []io.Closer{store},
	}), nil
}
