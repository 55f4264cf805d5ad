// Package clock abstracts time for components that schedule work.
//
// Production code uses Real. Tests use Fake, which only moves when
// Advance is called and fires due timers synchronously on the caller's
// goroutine.
package clock
