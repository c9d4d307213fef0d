// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for blocking PCM16 playback backends
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
)

// ErrClosed is returned by Write once the output has been closed
var ErrClosed = errors.New("audio output closed")

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(format audio.Format) error

	// Write outputs interleaved samples, blocking until the device has
	// accepted them. It returns the number of samples accepted.
	Write(samples []int16) (int, error)

	// Close releases output resources and unblocks a pending Write.
	// Safe to call more than once.
	Close() error
}

// Names lists the backends accepted by New
var Names = []string{"oto", "pulse", "portaudio", "null"}

// New creates the named output backend
func New(name string) (Output, error) {
	switch strings.ToLower(name) {
	case "", "oto":
		return NewOto(), nil
	case "pulse", "pulseaudio":
		return NewPulse(), nil
	case "portaudio":
		return NewPortAudio(), nil
	case "null", "none":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown audio output %q (available: %s)", name, strings.Join(Names, ", "))
	}
}
