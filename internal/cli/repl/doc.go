// Package repl is the interactive shell behind `moonlink shell`.
//
// One client stays open for the whole shell, so the session cache and the
// live channel persist between commands: a whoami shortly after a login
// is served from the cache, and pushed events are printed as they arrive.
package repl
