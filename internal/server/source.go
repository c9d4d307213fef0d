// ABOUTME: Audio sources for the broadcast server
// ABOUTME: A generated test tone or a looping MP3 file, both PCM16 interleaved
package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog/log"
)

// Source provides PCM16 audio
type Source interface {
	// Read fills samples with interleaved audio and returns how many were written
	Read(samples []int16) (int, error)
	SampleRate() int
	Channels() int
	// Name describes the source for status output
	Name() string
	Close() error
}

// NewSource opens an MP3 file, or a test tone when path is empty
func NewSource(path string) (Source, error) {
	if path == "" {
		return NewToneSource(440), nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return NewMP3Source(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3)", ext)
	}
}

// ToneSource generates a stereo sine wave
type ToneSource struct {
	mu          sync.Mutex
	sampleIndex uint64
	frequency   float64
}

// NewToneSource creates a tone generator at the given frequency
func NewToneSource(frequency float64) *ToneSource {
	return &ToneSource{frequency: frequency}
}

func (s *ToneSource) Read(samples []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(samples) / audio.DefaultChannels

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(audio.DefaultSampleRate)
		v := int16(math.Sin(2*math.Pi*s.frequency*t) * 32767.0 * 0.5) // 50% volume

		samples[i*2] = v
		samples[i*2+1] = v
	}

	s.sampleIndex += uint64(frames)
	return frames * audio.DefaultChannels, nil
}

func (s *ToneSource) SampleRate() int { return audio.DefaultSampleRate }
func (s *ToneSource) Channels() int   { return audio.DefaultChannels }
func (s *ToneSource) Name() string    { return fmt.Sprintf("Test tone %.0fHz", s.frequency) }
func (s *ToneSource) Close() error    { return nil }

// MP3Source reads an MP3 file, looping at the end
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	title   string
	buf     []byte
}

// NewMP3Source opens an MP3 file
func NewMP3Source(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	filename := filepath.Base(path)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	log.Info().Str("title", title).Int("sample_rate", decoder.SampleRate()).Msg("Loaded MP3")

	return &MP3Source{file: f, decoder: decoder, title: title}, nil
}

func (s *MP3Source) Read(samples []int16) (int, error) {
	need := len(samples) * audio.BytesPerSample
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	filled := 0
	rewound := false
	for filled < need {
		n, err := s.decoder.Read(buf[filled:])
		filled += n

		if errors.Is(err, io.EOF) {
			if rewound && n == 0 {
				break // Empty stream
			}
			if _, err := s.decoder.Seek(0, io.SeekStart); err != nil {
				return 0, fmt.Errorf("failed to seek to start: %w", err)
			}
			rewound = true
			continue
		}
		if err != nil {
			return 0, err
		}
		if n > 0 {
			rewound = false
		}
	}

	count := filled / audio.BytesPerSample
	for i := 0; i < count; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return count, nil
}

func (s *MP3Source) SampleRate() int { return s.decoder.SampleRate() }

// Channels is always 2; go-mp3 decodes to stereo
func (s *MP3Source) Channels() int { return 2 }
func (s *MP3Source) Name() string  { return s.title }

func (s *MP3Source) Close() error {
	return s.file.Close()
}
