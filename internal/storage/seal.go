package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CipherType identifies the AEAD used for a sealed value.
type CipherType byte

// Sealed values start with one of these bytes.
const (
	CipherNone     CipherType = 0
	CipherAESGCM   CipherType = 1
	CipherChaCha20 CipherType = 2
)

// Key material sizes and Argon2id parameters.
const (
	KeySize  = 32
	SaltSize = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

const sealInfo = "moonlink token seal v1"

// Errors returned by the sealer.
var (
	ErrSealedTooShort  = errors.New("sealed value too short")
	ErrUnknownCipher   = errors.New("unknown cipher type")
	ErrSealerNoKey     = errors.New("sealed value requires a key")
	ErrInvalidKeyFile  = errors.New("invalid key file")
	ErrInvalidKeyBytes = errors.New("key must be 32 bytes")
)

func (t CipherType) String() string {
	switch t {
	case CipherNone:
		return "none"
	case CipherAESGCM:
		return "aes-gcm"
	case CipherChaCha20:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("cipher(%d)", byte(t))
	}
}

// Sealer encrypts values with a key-bound AEAD.
//
// Layout: [cipher byte][nonce][ciphertext+tag]. CipherNone values are
// [0][plaintext], which a Sealer without a key produces and accepts.
type Sealer struct {
	preferred CipherType
	subkey    []byte
}

// NewSealer returns a Sealer for master key. A nil key disables sealing.
//
// The AEAD key is derived from the master key with HKDF-SHA256, so the
// same key file can be reused for other purposes without key reuse.
func NewSealer(key []byte) (*Sealer, error) {
	if key == nil {
		return &Sealer{preferred: CipherNone}, nil
	}
	return NewSealerWithType(key, preferredCipher())
}

// NewSealerWithType returns a Sealer that seals with cipherType.
func NewSealerWithType(key []byte, cipherType CipherType) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyBytes
	}
	if cipherType != CipherAESGCM && cipherType != CipherChaCha20 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCipher, cipherType)
	}

	subkey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(sealInfo)), subkey); err != nil {
		return nil, fmt.Errorf("derive subkey: %w", err)
	}
	return &Sealer{preferred: cipherType, subkey: subkey}, nil
}

// Type returns the cipher used by Seal.
func (s *Sealer) Type() CipherType {
	return s.preferred
}

// Seal encrypts plaintext bound to additionalData.
func (s *Sealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	if s.preferred == CipherNone {
		return append([]byte{byte(CipherNone)}, plaintext...), nil
	}

	aead, err := s.aead(s.preferred)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = byte(s.preferred)
	nonce := out[1:]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(out, nonce, plaintext, additionalData), nil
}

// Open decrypts a value produced by Seal with any cipher type.
func (s *Sealer) Open(sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) < 1 {
		return nil, ErrSealedTooShort
	}

	cipherType := CipherType(sealed[0])
	if cipherType == CipherNone {
		return append([]byte(nil), sealed[1:]...), nil
	}
	if s.subkey == nil {
		return nil, ErrSealerNoKey
	}

	aead, err := s.aead(cipherType)
	if err != nil {
		return nil, err
	}
	body := sealed[1:]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedTooShort
	}
	return aead.Open(nil, body[:aead.NonceSize()], body[aead.NonceSize():], additionalData)
}

func (s *Sealer) aead(cipherType CipherType) (cipher.AEAD, error) {
	switch cipherType {
	case CipherAESGCM:
		block, err := aes.NewCipher(s.subkey)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherChaCha20:
		return chacha20poly1305.New(s.subkey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCipher, cipherType)
	}
}

// preferredCipher picks AES-GCM where the CPU accelerates it.
func preferredCipher() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// LoadOrCreateKey reads a 32-byte key from path, generating it with mode
// 0600 when absent.
func LoadOrCreateKey(path string) ([]byte, error) {
	return loadOrCreateRandom(path, KeySize)
}

// DeriveKey derives a key from passphrase with Argon2id. The salt lives in
// saltPath and is generated on first use.
func DeriveKey(passphrase, saltPath string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is empty")
	}
	salt, err := loadOrCreateRandom(saltPath, SaltSize)
	if err != nil {
		return nil, err
	}
	return argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, KeySize), nil
}

func loadOrCreateRandom(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != size {
			return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrInvalidKeyFile, path, len(data), size)
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	data = make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close key file: %w", err)
	}
	return data, nil
}
