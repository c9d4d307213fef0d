// ABOUTME: Connection manager for one server
// ABOUTME: Dials, runs the read loop, dispatches messages and reports losses
package syncstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var errConnectionClosed = errors.New("connection closed")

// connection owns the transport for a session. State is written only here.
type connection struct {
	host      string
	port      int
	dial      protocol.DialOptions
	heartbeat time.Duration
	format    audio.Format

	buf     *Buffer
	stats   *counters
	latency *latencyTracker
	running func() bool
	logger  zerolog.Logger

	onStatus  func(Status)
	onLatency func(time.Duration)
	onSync    func(protocol.Message)
	onLost    func()

	// Hot-path warnings are throttled to one per second
	warnLimit *rate.Limiter

	state stateCell

	mu       sync.Mutex
	conn     *protocol.Conn
	stopBeat context.CancelFunc
	closed   bool
}

// State returns the current connection state
func (c *connection) State() ConnectionState {
	return c.state.Load()
}

// connect dials the server, sends sync_request and starts the heartbeat
// and read loop. Errors are returned to the caller to retry.
func (c *connection) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errConnectionClosed
	}
	c.mu.Unlock()

	c.state.Store(Connecting)
	c.status(statusConnecting())

	conn, err := protocol.Dial(ctx, c.host, c.port, c.dial)
	if err != nil {
		c.state.Store(Disconnected)
		if c.running() {
			c.status(statusError(err))
		}
		return err
	}

	c.mu.Lock()
	if c.closed || !c.running() {
		// Stop ran while we were dialing
		c.mu.Unlock()
		conn.Close()
		c.state.Store(Disconnected)
		return errConnectionClosed
	}
	beatCtx, stopBeat := context.WithCancel(ctx)
	c.conn = conn
	c.stopBeat = stopBeat
	c.mu.Unlock()

	c.state.Store(Connected)
	c.logger.Info().Str("addr", conn.Addr()).Msg("Connected")
	c.status(statusConnected())

	if err := conn.Send(protocol.NewSyncRequest()); err != nil {
		// The read loop will see the broken socket
		c.logger.Warn().Err(err).Msg("Failed to send sync_request")
	}

	go runHeartbeat(beatCtx, c.heartbeat, conn.Send, c.running, c.logger)
	go c.readLoop(conn, stopBeat)
	return nil
}

// close shuts the transport down for Stop. A dial that completes later is
// discarded.
func (c *connection) close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	stopBeat := c.stopBeat
	c.mu.Unlock()

	if stopBeat != nil {
		stopBeat()
	}
	if conn != nil {
		conn.Close()
	}
}

func (c *connection) readLoop(conn *protocol.Conn, stopBeat context.CancelFunc) {
	for {
		raw, err := conn.Receive()
		if err != nil {
			c.lost(conn, stopBeat, err)
			return
		}
		c.dispatch(raw)
	}
}

func (c *connection) lost(conn *protocol.Conn, stopBeat context.CancelFunc, err error) {
	stopBeat()
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.stopBeat = nil
	}
	c.mu.Unlock()

	c.state.Store(Disconnected)

	if !c.running() {
		c.logger.Debug().Err(err).Msg("Connection closed")
		return
	}

	code := protocol.CloseCode(err)
	c.logger.Warn().Err(err).Int("code", code).Msg("Connection lost")
	c.status(statusDisconnected(code))
	c.onLost()
}

func (c *connection) dispatch(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		c.stats.decodeErrors.Add(1)
		if c.warnLimit.Allow() {
			c.logger.Warn().Err(err).Msg("Dropping malformed message")
		}
		return
	}
	if !msg.Known() {
		c.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown message type")
		return
	}

	switch msg.Type {
	case protocol.TypeAudio:
		c.handleAudio(msg)

	case protocol.TypePong:
		if msg.ClientTime == nil {
			return
		}
		rtt, ok := c.latency.observe(protocol.FromUnixSeconds(*msg.ClientTime), time.Now())
		if ok && c.onLatency != nil {
			c.onLatency(rtt)
		}

	case protocol.TypeGlobalSync:
		n := c.buf.Clear()
		c.stats.cleared.Add(int64(n))
		c.logger.Info().Int("cleared", n).Msg("Global sync, buffer cleared")

	case protocol.TypeSync, protocol.TypeSyncResponse:
		if c.onSync != nil {
			c.onSync(msg)
		}

	case protocol.TypeInit:
		c.logger.Info().Int("sample_rate", msg.SampleRate).Int("buffer_size", msg.BufferSize).
			Str("message", msg.Text).Msg("Server init")
		if msg.SampleRate != 0 && msg.SampleRate != c.format.SampleRate {
			c.logger.Warn().Int("server_rate", msg.SampleRate).Int("output_rate", c.format.SampleRate).
				Msg("Server sample rate differs from output")
		}

	default:
		// sync_request and ping only travel client to server
		c.logger.Debug().Str("type", msg.Type).Msg("Ignoring server-bound message")
	}
}

func (c *connection) handleAudio(msg protocol.Message) {
	chunk, err := decode.Base64PCM16(msg.Audio)
	if err != nil {
		c.stats.decodeErrors.Add(1)
		if c.warnLimit.Allow() {
			c.logger.Warn().Err(err).Msg("Dropping undecodable audio")
		}
		return
	}
	if len(chunk) == 0 {
		return
	}

	c.stats.received.Add(1)
	if c.buf.Push(chunk) {
		c.stats.dropped.Add(1)
		if c.warnLimit.Allow() {
			c.logger.Warn().Int("capacity", c.buf.Cap()).Msg("Playback buffer full, dropped oldest chunk")
		}
	}
}

func (c *connection) status(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
