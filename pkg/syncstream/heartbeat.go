// ABOUTME: Heartbeat emitter for an open connection
// ABOUTME: Sends a ping with wall-clock and monotonic time every interval
package syncstream

import (
	"context"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval is the ping period
const DefaultHeartbeatInterval = 2 * time.Second

// runHeartbeat pings until ctx is cancelled, running reports false, or a
// send fails. Send failures are left to the read loop to report.
func runHeartbeat(ctx context.Context, interval time.Duration, send func(protocol.Message) error,
	running func() bool, logger zerolog.Logger) {
	epoch := time.Now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !running() {
				return
			}
			now := time.Now()
			if err := send(protocol.NewPing(now, now.Sub(epoch))); err != nil {
				logger.Debug().Err(err).Msg("Heartbeat stopped")
				return
			}
		}
	}
}
