// Package logger provides structured logging for moonlink.
//
// It wraps log/slog behind a small Logger interface:
//
//   - logger.go: handler construction, level control, package-level helpers
//   - context.go: context propagation of the logger and connection IDs
//   - redact.go: masking of bearer tokens and credential fields
//
// Tokens never reach the output in clear text: attributes whose key looks
// sensitive are replaced, and JWT-shaped values are masked wherever they
// appear.
package logger
