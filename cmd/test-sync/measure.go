// ABOUTME: Round trip and offset measurement over the ping/pong exchange
// ABOUTME: Offset assumes a symmetric path: server_time minus the midpoint of the round trip
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// Result summarizes a measurement run
type Result struct {
	Samples    int
	MinRTT     time.Duration
	MaxRTT     time.Duration
	AvgRTT     time.Duration
	Offset     time.Duration // Server clock minus local clock, averaged
	InitRate   int           // Sample rate announced in init, 0 if none arrived
	SyncAnswer bool          // Whether sync_request was answered
}

func (r Result) String() string {
	return fmt.Sprintf("samples=%d rtt min/avg/max=%v/%v/%v offset=%v init_rate=%d sync_response=%v",
		r.Samples, r.MinRTT, r.AvgRTT, r.MaxRTT, r.Offset, r.InitRate, r.SyncAnswer)
}

// measure sends a sync request followed by count pings and collects the pongs.
// Audio and other broadcasts received meanwhile are skipped.
func measure(ctx context.Context, conn *protocol.Conn, count int, interval time.Duration) (Result, error) {
	if count <= 0 {
		return Result{}, errors.New("count must be positive")
	}

	start := time.Now()
	if err := conn.Send(protocol.NewSyncRequest()); err != nil {
		return Result{}, err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; i < count; i++ {
			now := time.Now()
			if err := conn.Send(protocol.NewPing(now, now.Sub(start))); err != nil {
				log.Warn().Err(err).Msg("Ping failed")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var (
		result      Result
		totalRTT    time.Duration
		totalOffset time.Duration
	)

	for result.Samples < count {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		raw, err := conn.Receive()
		if err != nil {
			return result, fmt.Errorf("after %d samples: %w", result.Samples, err)
		}
		received := time.Now()

		msg, err := protocol.Decode(raw)
		if err != nil {
			log.Debug().Err(err).Msg("Skipping malformed message")
			continue
		}

		switch msg.Type {
		case protocol.TypeInit:
			result.InitRate = msg.SampleRate
		case protocol.TypeSyncResponse:
			result.SyncAnswer = true
		case protocol.TypePong:
			if msg.ClientTime == nil || msg.ServerTime == nil {
				continue
			}
			sent := protocol.FromUnixSeconds(*msg.ClientTime)
			rtt := received.Sub(sent)
			midpoint := sent.Add(rtt / 2)
			offset := protocol.FromUnixSeconds(*msg.ServerTime).Sub(midpoint)

			if result.Samples == 0 || rtt < result.MinRTT {
				result.MinRTT = rtt
			}
			if rtt > result.MaxRTT {
				result.MaxRTT = rtt
			}
			totalRTT += rtt
			totalOffset += offset
			result.Samples++

			log.Info().Int("seq", result.Samples).Dur("rtt", rtt).Dur("offset", offset).Msg("Pong")
		}
	}

	result.AvgRTT = totalRTT / time.Duration(result.Samples)
	result.Offset = totalOffset / time.Duration(result.Samples)
	return result, nil
}
