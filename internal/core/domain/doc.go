// Package domain defines the core domain models for moonlink.
//
// Domain models are plain values without IO dependencies:
//
//   - UserSnapshot: cached projection of the server-authoritative player
//   - PushMessage / HPUpdate: envelopes delivered over the live channel
//   - Fingerprint / ConnectionID: log-safe identifiers
//   - Errors: structured error codes shared by every layer
package domain
