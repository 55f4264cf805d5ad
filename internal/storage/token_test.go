package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yndnr/moonlink/internal/core/domain"
)

func TestTokenStore_SaveLoadClear(t *testing.T) {
	sealer, err := NewSealer(testKey())
	if err != nil {
		t.Fatal(err)
	}
	kv := NewMemoryEngine()
	store := NewTokenStore(kv, sealer, nil)
	ctx := context.Background()

	got, err := store.Load(ctx)
	if err != nil || got != "" {
		t.Fatalf("Load() on empty store = %q, %v; want \"\", nil", got, err)
	}

	if err := store.Save(ctx, "eyJhbGciOi.payload.sig"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := kv.Get(ctx, []byte(TokenKey))
	if err != nil {
		t.Fatalf("raw Get() error = %v", err)
	}
	if string(raw) == "eyJhbGciOi.payload.sig" {
		t.Error("token stored in plaintext")
	}

	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "eyJhbGciOi.payload.sig" {
		t.Errorf("Load() = %q, want saved token", got)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	got, _ = store.Load(ctx)
	if got != "" {
		t.Errorf("Load() after Clear = %q, want empty", got)
	}
}

func TestTokenStore_SaveEmptyClears(t *testing.T) {
	store := NewTokenStore(NewMemoryEngine(), nil, nil)
	ctx := context.Background()

	store.Save(ctx, "tok")
	if err := store.Save(ctx, ""); err != nil {
		t.Fatalf("Save(\"\") error = %v", err)
	}
	if got, _ := store.Load(ctx); got != "" {
		t.Errorf("Load() = %q, want empty", got)
	}
}

func TestTokenStore_UnreadableTokenDiscarded(t *testing.T) {
	kv := NewMemoryEngine()
	ctx := context.Background()

	oldKey := testKey()
	oldSealer, _ := NewSealer(oldKey)
	NewTokenStore(kv, oldSealer, nil).Save(ctx, "tok")

	newKey := testKey()
	newKey[0] ^= 0xFF
	newSealer, _ := NewSealer(newKey)
	store := NewTokenStore(kv, newSealer, nil)

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "" {
		t.Errorf("Load() = %q, want empty for a rotated key", got)
	}
	if _, err := kv.Get(ctx, []byte(TokenKey)); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("unreadable token should be deleted, Get() error = %v", err)
	}
}

func TestTokenStore_EngineErrors(t *testing.T) {
	kv := NewMemoryEngine()
	kv.Close()
	store := NewTokenStore(kv, nil, nil)
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrTokenStore) {
		t.Errorf("Load() error = %v, want ErrTokenStore", err)
	}
	if err := store.Save(ctx, "tok"); !errors.Is(err, domain.ErrTokenStore) {
		t.Errorf("Save() error = %v, want ErrTokenStore", err)
	}
	if err := store.Clear(ctx); !errors.Is(err, domain.ErrTokenStore) {
		t.Errorf("Clear() error = %v, want ErrTokenStore", err)
	}
}

func TestOpenTokenStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
	}{
		{"ephemeral plain", Options{Ephemeral: true}},
		{"badger random key", Options{Dir: filepath.Join(dir, "a"), Encrypt: true, KeyFile: filepath.Join(dir, "a.key")}},
		{"badger passphrase", Options{Dir: filepath.Join(dir, "b"), Encrypt: true, KeyFile: filepath.Join(dir, "b.salt"), Passphrase: "pw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenTokenStore(tt.opts)
			if err != nil {
				t.Fatalf("OpenTokenStore() error = %v", err)
			}
			if err := store.Save(ctx, "tok-"+tt.name); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			if tt.opts.Ephemeral {
				return
			}

			reopened, err := OpenTokenStore(tt.opts)
			if err != nil {
				t.Fatalf("reopen error = %v", err)
			}
			defer reopened.Close()

			got, err := reopened.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != "tok-"+tt.name {
				t.Errorf("Load() = %q, want %q", got, "tok-"+tt.name)
			}
		})
	}
}
