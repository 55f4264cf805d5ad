// Package live keeps the client's push channel to the game server open.
//
// A Manager holds at most one connection for the current token. It
// reconnects after unexpected closes using a fixed backoff table, drops
// malformed frames, and fans decoded messages out to listeners in
// registration order.
//
// State machine:
//
//	Idle -> Connecting -> Open -> ClosedClean | ClosedDropped
//	ClosedDropped -> AwaitingRetry -> Connecting -> ...
//
// Disconnect moves any state to ClosedClean and cancels pending work.
package live
