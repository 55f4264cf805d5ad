// Package session owns the authenticated session of the client.
//
// The Coordinator holds the bearer token and a single cached user
// snapshot with a fixed TTL. It persists the token through a TokenStore,
// fetches the current user through a UserFetcher, and forces a logout when
// the server answers 401. Observers registered with Subscribe see every
// state change in order.
package session
