//go:build !linux

// ABOUTME: Thread priority stub for non-Linux platforms
// ABOUTME: Reports ErrUnsupported so callers fall back to normal priority
package platform

// RaiseThreadPriority is not supported on this platform
func RaiseThreadPriority() error {
	return ErrUnsupported
}
