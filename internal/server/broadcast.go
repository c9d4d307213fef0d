// ABOUTME: Audio and sync broadcast loops
// ABOUTME: Streams source chunks with play_at timestamps and periodic sync packets
package server

import (
	"context"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// chunkDuration is the playback time of one chunk
func chunkDuration(frames, sampleRate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// streamLoop reads one chunk per chunk duration and broadcasts it
func (s *Server) streamLoop(ctx context.Context) {
	rate := s.source.SampleRate()
	channels := s.source.Channels()
	samples := make([]int16, s.config.ChunkFrames*channels)

	ticker := time.NewTicker(chunkDuration(s.config.ChunkFrames, rate))
	defer ticker.Stop()

	log.Info().Int("sample_rate", rate).Int("channels", channels).Int("frames", s.config.ChunkFrames).
		Msg("Audio stream starting")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Audio stream stopping")
			return
		case <-ticker.C:
			s.sendChunk(samples, rate, channels)
		}
	}
}

func (s *Server) sendChunk(samples []int16, rate, channels int) {
	n, err := s.source.Read(samples)
	if err != nil {
		log.Warn().Err(err).Msg("Audio source read failed")
		return
	}
	if n == 0 || s.ClientCount() == 0 {
		return
	}

	now := time.Now()
	msg := protocol.NewAudio(encode.Base64PCM16(samples[:n]), now, now.Add(s.config.PlayDelay), rate, channels)
	s.broadcast(msg)
	s.chunksSent.Add(1)
}

// syncLoop sends the server clock to every client once per interval
func (s *Server) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ClientCount(); n > 0 {
				s.broadcast(protocol.NewSync(time.Now(), n))
			}
		}
	}
}
