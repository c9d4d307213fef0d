// ABOUTME: Round-trip latency tracking from heartbeat pongs
// ABOUTME: Exponentially smoothed RTT, reported but never applied to playback
package syncstream

import (
	"sync"
	"time"
)

// latencySmoothing is the weight given to each new sample
const latencySmoothing = 0.1

type latencyTracker struct {
	mu       sync.Mutex
	smoothed time.Duration
	last     time.Duration
	samples  int
}

// observe records a pong for a ping sent at sent and returns the smoothed
// RTT. Samples from a clock that went backwards are ignored.
func (l *latencyTracker) observe(sent, received time.Time) (time.Duration, bool) {
	rtt := received.Sub(sent)
	if rtt < 0 {
		return 0, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.last = rtt
	if l.samples == 0 {
		l.smoothed = rtt
	} else {
		l.smoothed += time.Duration(latencySmoothing * float64(rtt-l.smoothed))
	}
	l.samples++
	return l.smoothed, true
}

func (l *latencyTracker) rtt() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.smoothed
}
