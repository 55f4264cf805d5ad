// Package tlsroots builds the trust roots moonlink uses to reach a game
// server over https and wss.
//
// The system pool is extended with operator-supplied CA certificates, so a
// self-hosted server with a private CA works without disabling
// verification.
package tlsroots
