// Package client is the facade the CLI talks to.
//
// It wires the session coordinator to the live connection manager: a
// token appearing in the session connects the push channel, a token
// disappearing disconnects it, and pushed hp_update messages flow back
// into the cached user.
package client
