// ABOUTME: Platform integration for the playback path
// ABOUTME: Thread priority and the sleep-inhibit lock held while streaming
package platform

import "errors"

// ErrUnsupported is returned when a feature is unavailable on this platform
var ErrUnsupported = errors.New("not supported on this platform")

// Lock is held for the lifetime of a streaming session, keeping the host
// from sleeping while audio plays
type Lock interface {
	Acquire() error
	Release() error
}

// NoopLock satisfies Lock without doing anything
type NoopLock struct{}

// Acquire does nothing
func (NoopLock) Acquire() error { return nil }

// Release does nothing
func (NoopLock) Release() error { return nil }
