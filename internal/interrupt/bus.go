// Package interrupt implements the process-wide ESC interrupt signal (C9):
// a single level-triggered flag shared between the line editor, the HTTP
// transport's progress callback, and the tool dispatcher's polling loop.
package interrupt

import "sync/atomic"

// Bus is a level-triggered, idempotent interrupt flag. The zero value is
// ready to use (not requested).
//
// atomic.Bool already gives release-before-acquire ordering between Request
// and IsSet, which is the ordering guarantee spec.md §4.7 requires: a write
// from the ESC handler is visible to any reader (HTTP progress callback,
// dispatcher poll) that observes it afterward.
type Bus struct {
	requested atomic.Bool
}

// New returns a cleared Bus.
func New() *Bus {
	return &Bus{}
}

// Request sets the interrupt flag. Repeated calls are idempotent.
func (b *Bus) Request() {
	b.requested.Store(true)
}

// Clear resets the interrupt flag. Called at the start of each user turn.
func (b *Bus) Clear() {
	b.requested.Store(false)
}

// IsSet reports whether an interrupt is currently requested.
func (b *Bus) IsSet() bool {
	return b.requested.Load()
}
