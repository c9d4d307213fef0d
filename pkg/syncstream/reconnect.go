// ABOUTME: Reconnect supervisor with capped exponential backoff
// ABOUTME: The single retry policy; at most one attempt sequence runs at a time
package syncstream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Backoff defaults
const (
	DefaultBackoffInitial = time.Second
	DefaultBackoffFactor  = 2.0
	DefaultBackoffMax     = 30 * time.Second
)

// Backoff produces reconnect delays: Initial, Initial*Factor, ... capped at Max
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration

	current time.Duration
}

// DefaultBackoff returns 1s doubling up to 30s
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: DefaultBackoffInitial,
		Factor:  DefaultBackoffFactor,
		Max:     DefaultBackoffMax,
	}
}

// Next returns the delay before the next attempt
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
	} else {
		b.current = time.Duration(float64(b.current) * b.Factor)
	}
	if b.current > b.Max {
		b.current = b.Max
	}
	return b.current
}

// Reset starts the sequence over
func (b *Backoff) Reset() {
	b.current = 0
}

// reconnector re-establishes the connection after a loss
type reconnector struct {
	ctx     context.Context
	backoff Backoff
	running func() bool
	state   func() ConnectionState
	connect func(context.Context) error
	logger  zerolog.Logger

	// wait sleeps for d, returning false if ctx ended first
	wait func(ctx context.Context, d time.Duration) bool

	inFlight atomic.Bool
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Schedule starts an attempt sequence unless one is already running
func (r *reconnector) Schedule() {
	if !r.inFlight.CompareAndSwap(false, true) {
		return
	}
	go r.run()
}

func (r *reconnector) run() {
	for {
		r.attempt()
		r.inFlight.Store(false)

		// A loss reported just before the flag cleared was dropped by
		// Schedule; pick it up here
		if !r.needed() || !r.inFlight.CompareAndSwap(false, true) {
			return
		}
	}
}

func (r *reconnector) needed() bool {
	return r.ctx.Err() == nil && r.running() && r.state() == Disconnected
}

func (r *reconnector) attempt() {
	r.backoff.Reset()

	for n := 1; r.needed(); n++ {
		delay := r.backoff.Next()
		r.logger.Info().Int("attempt", n).Dur("delay", delay).Msg("Reconnecting")

		if !r.wait(r.ctx, delay) || !r.needed() {
			return
		}

		err := r.connect(r.ctx)
		if err == nil {
			r.logger.Info().Int("attempt", n).Msg("Reconnected")
			return
		}
		r.logger.Warn().Err(err).Int("attempt", n).Msg("Reconnect failed")
	}
}
