// ABOUTME: Audio type definitions
// ABOUTME: Defines the stream format and decoded PCM16 chunks
package audio

import "encoding/binary"

const (
	// DefaultSampleRate is the stream rate used by sync-stream servers
	DefaultSampleRate = 44100

	// DefaultChannels is interleaved stereo
	DefaultChannels = 2

	// BytesPerSample for signed 16-bit PCM
	BytesPerSample = 2
)

// Format describes the PCM stream format
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat returns 44.1kHz stereo
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
	}
}

// Chunk is one decoded unit of interleaved signed 16-bit samples
// (left, right, left, right, ...)
type Chunk []int16

// Frames returns the number of complete frames for the given channel count
func (c Chunk) Frames(channels int) int {
	if channels <= 0 {
		return 0
	}
	return len(c) / channels
}

// AppendBytes appends samples as little-endian PCM bytes to dst
func AppendBytes(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// FromBytes reinterprets little-endian PCM bytes as samples.
// A trailing odd byte is half a sample and is discarded.
func FromBytes(data []byte) Chunk {
	n := len(data) / BytesPerSample
	if n == 0 {
		return nil
	}
	samples := make(Chunk, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples
}
