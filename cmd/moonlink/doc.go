// Package main provides the entry point for moonlink.
//
// moonlink signs in to a Moonshine game server, keeps the session token
// sealed on disk, and follows the live push channel with `moonlink watch`.
package main
