//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform blocking audio output using PortAudio
package output

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"
)

const portAudioFramesPerBuffer = 512

// PortAudio output implementation
type PortAudio struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open initializes PortAudio with a blocking output stream
func (p *PortAudio) Open(format audio.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	// Interleaved buffer; stream.Write sends its current contents
	p.buffer = make([]int16, portAudioFramesPerBuffer*format.Channels)

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate),
		portAudioFramesPerBuffer, p.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream

	log.Info().Int("sample_rate", format.SampleRate).Int("channels", format.Channels).
		Msg("Audio output initialized (portaudio)")
	return nil
}

// Write outputs audio samples one device buffer at a time; the final
// partial buffer is padded with silence
func (p *PortAudio) Write(samples []int16) (int, error) {
	written := 0
	for written < len(samples) {
		p.mu.Lock()
		if p.stream == nil {
			p.mu.Unlock()
			return written, ErrClosed
		}

		n := copy(p.buffer, samples[written:])
		clear(p.buffer[n:])
		err := p.stream.Write()
		p.mu.Unlock()

		if err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return written, fmt.Errorf("portaudio write: %w", err)
		}
		written += n
	}
	return written, nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	p.stream = nil

	if err := portaudio.Terminate(); err != nil {
		return err
	}
	return errors.Join(stopErr, closeErr)
}
