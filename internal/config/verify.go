package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyAPI(&cfg.API); err != nil {
		return err
	}
	if err := verifyLive(&cfg.Live); err != nil {
		return err
	}
	if cfg.Session.CacheTTL < 0 {
		return errors.New("session.cache_ttl must not be negative")
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return nil
}

func verifyAPI(cfg *APISection) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", cfg.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	return nil
}

func verifyLive(cfg *LiveSection) error {
	if !cfg.Enabled {
		return nil
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("live.url %q is not an absolute URL", cfg.URL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("live.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if len(cfg.Backoff) == 0 {
		return errors.New("live.backoff must list at least one delay")
	}
	for i, d := range cfg.Backoff {
		if d <= 0 {
			return fmt.Errorf("live.backoff[%d] must be positive", i)
		}
	}
	for _, code := range cfg.TerminalCodes {
		if code < 1000 || code > 4999 {
			return fmt.Errorf("live.terminal_codes: %d is not a close code", code)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.Ephemeral {
		return nil
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return errors.New("storage.dir is required unless storage.ephemeral is set")
	}
	if cfg.Encrypt && cfg.KeyFile == "" {
		return errors.New("storage.key_file is required when storage.encrypt is set")
	}
	return nil
}

// Validate is Verify as a method.
func (c *Config) Validate() error {
	return Verify(c)
}
