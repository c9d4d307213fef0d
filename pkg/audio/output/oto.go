// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM16 through a pipe into a persistent oto player
package output

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog/log"
)

// oto allows a single context per process, so it is shared by every Oto
// output and survives Close/Open cycles
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

func sharedContext(format audio.Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != format {
			return nil, fmt.Errorf("oto context already running at %dHz %dch, cannot switch to %dHz %dch",
				otoFormat.SampleRate, otoFormat.Channels, format.SampleRate, format.Channels)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = format
	return ctx, nil
}

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	ctx        *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return nil
	}

	ctx, err := sharedContext(format)
	if err != nil {
		return err
	}
	if err := ctx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	// The player pulls from the pipe at the device rate, so writes block
	// for exactly as long as the device needs
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ctx = ctx

	log.Info().Int("sample_rate", format.SampleRate).Int("channels", format.Channels).
		Msg("Audio output initialized (oto)")
	return nil
}

// Write outputs audio samples (blocks until written)
func (o *Oto) Write(samples []int16) (int, error) {
	o.mu.Lock()
	w := o.pipeWriter
	o.mu.Unlock()

	if w == nil {
		return 0, ErrClosed
	}

	n, err := w.Write(audio.AppendBytes(make([]byte, 0, len(samples)*audio.BytesPerSample), samples))
	n /= audio.BytesPerSample
	if errors.Is(err, io.ErrClosedPipe) {
		return n, ErrClosed
	}
	if err != nil {
		return n, fmt.Errorf("pipe write failed: %w", err)
	}
	return n, nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}

	o.pipeWriter.CloseWithError(ErrClosed)
	err := o.player.Close()
	o.pipeReader.Close()
	o.player = nil
	o.pipeWriter = nil
	o.pipeReader = nil

	if suspendErr := o.ctx.Suspend(); suspendErr != nil && err == nil {
		err = suspendErr
	}
	return err
}
