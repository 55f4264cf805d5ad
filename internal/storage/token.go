package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yndnr/moonlink/internal/core/domain"
)

// TokenKey is the only key the client persists.
const TokenKey = "auth/token"

// TokenStore persists the bearer token across runs.
type TokenStore struct {
	kv     KV
	sealer *Sealer
	logger *slog.Logger
}

// NewTokenStore wraps kv. A nil sealer stores the token unsealed.
func NewTokenStore(kv KV, sealer *Sealer, logger *slog.Logger) *TokenStore {
	if sealer == nil {
		sealer = &Sealer{preferred: CipherNone}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenStore{kv: kv, sealer: sealer, logger: logger}
}

// Load returns the persisted token, or "" when none is stored.
func (s *TokenStore) Load(ctx context.Context) (string, error) {
	sealed, err := s.kv.Get(ctx, []byte(TokenKey))
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", domain.ErrTokenStore.WithCause(err)
	}

	plain, err := s.sealer.Open(sealed, []byte(TokenKey))
	if err != nil {
		// A token sealed under a lost or rotated key is unrecoverable.
		s.logger.Warn("discarding unreadable stored token", "error", err)
		if derr := s.kv.Delete(ctx, []byte(TokenKey)); derr != nil {
			return "", domain.ErrTokenStore.WithCause(derr)
		}
		return "", nil
	}
	return string(plain), nil
}

// Save persists token. An empty token clears the store.
func (s *TokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	sealed, err := s.sealer.Seal([]byte(token), []byte(TokenKey))
	if err != nil {
		return domain.ErrTokenStore.WithCause(err)
	}
	if err := s.kv.Set(ctx, []byte(TokenKey), sealed); err != nil {
		return domain.ErrTokenStore.WithCause(err)
	}
	s.logger.Debug("token persisted", "token_fp", domain.Fingerprint(token), "cipher", s.sealer.Type().String())
	return nil
}

// Clear removes the persisted token.
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, []byte(TokenKey)); err != nil {
		return domain.ErrTokenStore.WithCause(err)
	}
	return nil
}

// Close closes the underlying engine.
func (s *TokenStore) Close() error {
	return s.kv.Close()
}
