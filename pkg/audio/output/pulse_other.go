//go:build !linux

// ABOUTME: PulseAudio stub for platforms without PulseAudio
// ABOUTME: Reports the backend as unavailable at Open time
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
)

// Pulse output implementation (stub)
type Pulse struct{}

// NewPulse creates a new PulseAudio output
func NewPulse() *Pulse {
	return &Pulse{}
}

// Open always fails on this platform
func (p *Pulse) Open(format audio.Format) error {
	return fmt.Errorf("PulseAudio output is only available on linux")
}

// Write always fails on this platform
func (p *Pulse) Write(samples []int16) (int, error) {
	return 0, ErrClosed
}

// Close releases resources
func (p *Pulse) Close() error {
	return nil
}
