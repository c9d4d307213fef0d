// ABOUTME: Playback loop draining the buffer into the audio output
// ABOUTME: Runs on a locked, priority-raised OS thread for the whole session
package syncstream

import (
	"errors"
	"runtime"

	"github.com/Resonate-Protocol/syncstream-go/internal/platform"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio/output"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxStalls is how many zero-progress writes abandon a chunk
const maxStalls = 3

var errStalled = errors.New("output accepted no samples")

type playback struct {
	buf     *Buffer
	sink    output.Output
	stats   *counters
	running func() bool
	logger  zerolog.Logger

	warnLimit *rate.Limiter
	done      chan struct{}
}

// run drains the buffer until the session stops. The sink is closed on exit.
func (p *playback) run() {
	defer close(p.done)

	// Never unlocked: the thread is retired with its raised priority when
	// the goroutine exits
	runtime.LockOSThread()
	if err := platform.RaiseThreadPriority(); err != nil {
		p.logger.Debug().Err(err).Msg("Playback thread priority unchanged")
	}

	defer func() {
		if err := p.sink.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to close audio output")
		}
	}()

	for p.running() {
		chunk, ok := p.buf.Pop()
		if !ok {
			return
		}

		err := p.write(chunk)
		switch {
		case err == nil:
			p.stats.played.Add(1)
		case errors.Is(err, output.ErrClosed):
			p.logger.Debug().Msg("Audio output closed, playback stopping")
			return
		default:
			p.stats.writeErrors.Add(1)
			if p.warnLimit.Allow() {
				p.logger.Warn().Err(err).Msg("Audio write failed, chunk abandoned")
			}
		}
	}
}

// write delivers the whole chunk, resuming after partial writes
func (p *playback) write(chunk audio.Chunk) error {
	stalls := 0
	for len(chunk) > 0 {
		n, err := p.sink.Write(chunk)
		if err != nil {
			return err
		}
		if n <= 0 {
			stalls++
			if stalls >= maxStalls {
				return errStalled
			}
			continue
		}
		stalls = 0
		if n > len(chunk) {
			// A sink claiming more than it was given has consumed the chunk
			n = len(chunk)
		}
		chunk = chunk[n:]
	}
	return nil
}
