// Package cancelctl implements the thread-safe one-shot CancelToken
// consulted at every long-running I/O boundary: between hash chunks,
// between copy/move actions, and between conversion subprocess polls.
package cancelctl

import "sync/atomic"

// Token is a one-shot boolean: once Cancel is called, Cancelled always
// reports true. Safe for concurrent use by any number of goroutines.
type Token struct {
	fired atomic.Bool
}

// New returns a fresh, not-yet-cancelled token.
func New() *Token {
	return &Token{}
}

// Cancel fires the token. Idempotent.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.fired.Store(true)
}

// Cancelled reports whether Cancel has been called. A nil token is never
// cancelled, so callers may pass a nil *Token to mean "no cancellation".
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.fired.Load()
}
