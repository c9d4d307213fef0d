//go:build !linux

// ABOUTME: Sleep inhibitor stub for non-Linux platforms
// ABOUTME: Acquire reports ErrUnsupported
package platform

// Inhibitor is unavailable on this platform
type Inhibitor struct {
	Who string
	Why string
}

// NewInhibitor creates an inhibitor with the given description
func NewInhibitor(who, why string) *Inhibitor {
	return &Inhibitor{Who: who, Why: why}
}

// Acquire is not supported on this platform
func (i *Inhibitor) Acquire() error {
	return ErrUnsupported
}

// Release does nothing
func (i *Inhibitor) Release() error {
	return nil
}
