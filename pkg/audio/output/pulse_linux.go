//go:build linux

// ABOUTME: PulseAudio output implementation
// ABOUTME: Feeds PCM16 to a PulseAudio playback stream via a bounded frame queue
package output

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/jfreymuth/pulse"
	"github.com/rs/zerolog/log"
)

const (
	pulseQueueDepth = 4
	pulseLatency    = 0.1 // seconds
)

// Pulse output implementation using the native PulseAudio protocol
type Pulse struct {
	mu     sync.Mutex
	client *pulse.Client
	stream *pulse.PlaybackStream
	frames chan []int16
	done   chan struct{}
}

// NewPulse creates a new PulseAudio output
func NewPulse() *Pulse {
	return &Pulse{}
}

// Open connects to the PulseAudio server and starts a playback stream
func (p *Pulse) Open(format audio.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}

	client, err := pulse.NewClient(pulse.ClientApplicationName("syncstream"))
	if err != nil {
		return fmt.Errorf("pulse connect: %w", err)
	}

	channelOpt := pulse.PlaybackStereo
	if format.Channels == 1 {
		channelOpt = pulse.PlaybackMono
	}

	frames := make(chan []int16, pulseQueueDepth)
	done := make(chan struct{})

	stream, err := client.NewPlayback(pulse.Int16Reader(filler(frames, done)),
		channelOpt,
		pulse.PlaybackSampleRate(format.SampleRate),
		pulse.PlaybackLatency(pulseLatency),
	)
	if err != nil {
		client.Close()
		return fmt.Errorf("pulse playback stream: %w", err)
	}

	stream.Start()

	p.client = client
	p.stream = stream
	p.frames = frames
	p.done = done

	log.Info().Int("sample_rate", format.SampleRate).Int("channels", format.Channels).
		Msg("Audio output initialized (pulse)")
	return nil
}

// filler returns the callback the stream invokes when the server wants
// more data. Missing data is rendered as silence so the stream never stalls.
func filler(frames <-chan []int16, done <-chan struct{}) func([]int16) (int, error) {
	var pending []int16

	return func(out []int16) (int, error) {
		n := 0
		for n < len(out) {
			if len(pending) == 0 {
				select {
				case f := <-frames:
					pending = f
				case <-done:
					return n, pulse.EndOfData
				default:
					clear(out[n:])
					return len(out), nil
				}
			}
			copied := copy(out[n:], pending)
			pending = pending[copied:]
			n += copied
		}
		return n, nil
	}
}

// Write queues samples, blocking while the queue is full
func (p *Pulse) Write(samples []int16) (int, error) {
	p.mu.Lock()
	frames, done := p.frames, p.done
	p.mu.Unlock()

	if frames == nil {
		return 0, ErrClosed
	}

	buf := make([]int16, len(samples))
	copy(buf, samples)

	select {
	case frames <- buf:
		return len(samples), nil
	case <-done:
		return 0, ErrClosed
	}
}

// Close stops the stream and disconnects from the server
func (p *Pulse) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	close(p.done)
	p.stream.Close()
	p.client.Close()

	p.stream = nil
	p.client = nil
	p.frames = nil
	return nil
}
