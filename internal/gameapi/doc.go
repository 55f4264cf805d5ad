// Package gameapi is the HTTP client for the game server's REST API.
//
// It covers the calls the session layer needs: sign-in, sign-up and the
// current-user fetch. Failures are mapped onto domain errors:
//
//   - 401 on an authenticated call: domain.ErrUnauthorized
//   - 400/401/409 on sign-in or sign-up: domain.ErrSignInRejected
//   - everything else, including transport errors: domain.ErrTransient
//
// The server's {"error": "..."} message, when present, becomes Details.
package gameapi
