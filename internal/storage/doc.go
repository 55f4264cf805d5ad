// Package storage persists the session token.
//
// The durable state of the client is a single key, auth/token. It lives
// in a KV engine (Badger on disk, or memory for ephemeral sessions) and
// is sealed with an AEAD before it is written.
//
//   - kv.go: KV interface and common errors
//   - memory.go: in-memory engine
//   - badger.go: Badger v3 engine with GC loop and size gauges
//   - seal.go: AES-GCM / ChaCha20-Poly1305 sealing and key management
//   - token.go: TokenStore over a KV and a Sealer
//   - open.go: builds a TokenStore from options
package storage
