// ABOUTME: Null audio output that discards samples at the device pace
// ABOUTME: Used for headless runs and tests where no sound card exists
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
)

// Null discards audio but blocks for the playback duration of each write
type Null struct {
	mu     sync.Mutex
	format audio.Format
	done   chan struct{}
}

// NewNull creates a new Null output
func NewNull() *Null {
	return &Null{}
}

// Open initializes the output
func (n *Null) Open(format audio.Format) error {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("invalid format %dHz %dch", format.SampleRate, format.Channels)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.done == nil {
		n.done = make(chan struct{})
	}
	n.format = format
	return nil
}

// Write sleeps for the duration of the samples
func (n *Null) Write(samples []int16) (int, error) {
	n.mu.Lock()
	done := n.done
	format := n.format
	n.mu.Unlock()

	if done == nil {
		return 0, ErrClosed
	}

	frames := audio.Chunk(samples).Frames(format.Channels)
	d := time.Duration(frames) * time.Second / time.Duration(format.SampleRate)

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return len(samples), nil
	case <-done:
		return 0, ErrClosed
	}
}

// Close releases the output
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.done != nil {
		close(n.done)
		n.done = nil
	}
	return nil
}
