// ABOUTME: Player lifecycle for sync-stream playback
// ABOUTME: Start/Stop a session wiring connection, reconnect, buffer and playback
package syncstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/internal/platform"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio/output"
	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Lifecycle errors
var (
	ErrAlreadyRunning  = errors.New("player already running")
	ErrSinkUnavailable = errors.New("audio output unavailable")
	ErrStopTimeout     = errors.New("playback did not stop in time")
)

// Default timeouts
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultStopTimeout  = 2 * time.Second
)

// Config holds player configuration
type Config struct {
	// BufferCapacity is the number of chunks buffered ahead of playback (default: 32)
	BufferCapacity int

	// Format is the output format (default: 44.1kHz stereo)
	Format audio.Format

	// HeartbeatInterval is the ping period (default: 2s)
	HeartbeatInterval time.Duration

	// Backoff controls reconnect delays (default: 1s doubling to 30s)
	Backoff Backoff

	DialTimeout  time.Duration
	ReadTimeout  time.Duration // Silence before the connection is considered dead
	WriteTimeout time.Duration

	// StopTimeout bounds each wait for the playback goroutine in Stop
	StopTimeout time.Duration

	// Sink is the audio output (default: oto)
	Sink output.Output

	// Lock is held while a session runs (default: no-op)
	Lock platform.Lock

	// OnStatus is called on connection status changes
	OnStatus func(Status)

	// OnLatency is called with the smoothed RTT after each pong
	OnLatency func(time.Duration)

	// OnSync is called for sync and sync_response messages
	OnSync func(protocol.Message)
}

func (c *Config) applyDefaults() {
	if c.BufferCapacity == 0 {
		c.BufferCapacity = DefaultBufferCapacity
	}
	if c.Format.SampleRate == 0 {
		c.Format.SampleRate = audio.DefaultSampleRate
	}
	if c.Format.Channels == 0 {
		c.Format.Channels = audio.DefaultChannels
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Backoff.Initial == 0 {
		c.Backoff.Initial = DefaultBackoffInitial
	}
	if c.Backoff.Factor == 0 {
		c.Backoff.Factor = DefaultBackoffFactor
	}
	if c.Backoff.Max == 0 {
		c.Backoff.Max = DefaultBackoffMax
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.Sink == nil {
		c.Sink = output.NewOto()
	}
	if c.Lock == nil {
		c.Lock = platform.NoopLock{}
	}
}

func (c *Config) validate() error {
	if c.BufferCapacity < 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", c.BufferCapacity)
	}
	if c.Format.SampleRate < 0 || c.Format.Channels < 0 {
		return fmt.Errorf("invalid format %dHz %dch", c.Format.SampleRate, c.Format.Channels)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", c.HeartbeatInterval)
	}
	if c.Backoff.Initial < 0 || c.Backoff.Max < c.Backoff.Initial || c.Backoff.Factor < 1 {
		return fmt.Errorf("invalid backoff %v x%.1f max %v", c.Backoff.Initial, c.Backoff.Factor, c.Backoff.Max)
	}
	if c.StopTimeout < 0 {
		return fmt.Errorf("stop timeout must be positive, got %v", c.StopTimeout)
	}
	return nil
}

// session is everything owned by one Start..Stop cycle
type session struct {
	id      string
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	buf      *Buffer
	stats    counters
	latency  latencyTracker
	conn     *connection
	rec      *reconnector
	playback *playback
}

// Player plays audio from a sync-stream server
type Player struct {
	config Config

	// lifecycle serializes Start and Stop; mu only guards sess so
	// readers never wait on a stopping session
	lifecycle sync.Mutex
	mu        sync.Mutex
	sess      *session
}

// NewPlayer creates a new player with the given configuration
func NewPlayer(config Config) (*Player, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Player{config: config}, nil
}

func (p *Player) newSession(host string, port int) *session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &session{
		id:     uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
		buf:    NewBuffer(p.config.BufferCapacity),
	}
	logger := log.With().Str("session", s.id).Logger()
	running := s.running.Load

	s.conn = &connection{
		host: host,
		port: port,
		dial: protocol.DialOptions{
			HandshakeTimeout: p.config.DialTimeout,
			ReadTimeout:      p.config.ReadTimeout,
			WriteTimeout:     p.config.WriteTimeout,
		},
		heartbeat: p.config.HeartbeatInterval,
		format:    p.config.Format,
		buf:       s.buf,
		stats:     &s.stats,
		latency:   &s.latency,
		running:   running,
		logger:    logger,
		onStatus:  p.config.OnStatus,
		onLatency: p.config.OnLatency,
		onSync:    p.config.OnSync,
		warnLimit: rate.NewLimiter(rate.Every(time.Second), 1),
	}

	s.rec = &reconnector{
		ctx:     ctx,
		backoff: p.config.Backoff,
		running: running,
		state:   s.conn.State,
		connect: s.conn.connect,
		logger:  logger,
		wait:    sleepCtx,
	}
	s.conn.onLost = s.rec.Schedule

	s.playback = &playback{
		buf:       s.buf,
		sink:      p.config.Sink,
		stats:     &s.stats,
		running:   running,
		logger:    logger,
		warnLimit: rate.NewLimiter(rate.Every(time.Second), 1),
		done:      make(chan struct{}),
	}

	return s
}

// Start opens the audio output and begins streaming from host:port.
// Connection failures are retried in the background; only an output
// failure is returned.
func (p *Player) Start(host string, port int) error {
	if host == "" {
		return fmt.Errorf("no server host")
	}
	if port <= 0 {
		port = protocol.DefaultPort
	}

	p.lifecycle.Lock()
	if p.Running() {
		p.lifecycle.Unlock()
		return ErrAlreadyRunning
	}

	s := p.newSession(host, port)
	s.running.Store(true)
	logger := s.conn.logger

	if err := p.config.Lock.Acquire(); err != nil {
		logger.Warn().Err(err).Msg("Sleep inhibit unavailable")
	}

	if err := p.config.Sink.Open(p.config.Format); err != nil {
		s.running.Store(false)
		s.cancel()
		p.config.Lock.Release()
		p.lifecycle.Unlock()

		err = fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
		p.notify(statusError(err))
		return err
	}

	context.AfterFunc(s.ctx, s.buf.Close)
	p.mu.Lock()
	p.sess = s
	p.mu.Unlock()

	logger.Info().Str("addr", protocol.URL(host, port)).Msg("Player started")

	go s.playback.run()
	go func() {
		if err := s.conn.connect(s.ctx); err != nil {
			logger.Warn().Err(err).Msg("Initial connection failed")
			if s.running.Load() {
				s.rec.Schedule()
			}
		}
	}()
	p.lifecycle.Unlock()

	return nil
}

// Stop ends the session. It returns once playback has exited, forcing the
// output closed if a write does not return in time.
func (p *Player) Stop() error {
	stopped, err := p.stopSession()
	if stopped {
		p.notify(statusStopped())
	}
	return err
}

// stopSession tears the current session down. Readers keep access to the
// session through mu while the bounded waits run.
func (p *Player) stopSession() (bool, error) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	s := p.sess
	p.mu.Unlock()
	if s == nil || !s.running.Load() {
		return false, nil
	}
	logger := s.conn.logger

	s.running.Store(false)
	s.conn.close()
	s.cancel()
	s.buf.Close()

	var err error
	if !waitDone(s.playback.done, p.config.StopTimeout) {
		logger.Warn().Dur("timeout", p.config.StopTimeout).Msg("Playback stuck, forcing output closed")
		p.config.Sink.Close()
		if !waitDone(s.playback.done, p.config.StopTimeout) {
			err = ErrStopTimeout
		}
	}

	if releaseErr := p.config.Lock.Release(); releaseErr != nil {
		logger.Warn().Err(releaseErr).Msg("Failed to release sleep inhibit")
	}

	logger.Info().Msg("Player stopped")
	return true, err
}

// Running reports whether a session is active
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess != nil && p.sess.running.Load()
}

// State returns the connection state of the current session
func (p *Player) State() ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return Disconnected
	}
	return p.sess.conn.State()
}

// Stats returns counters for the current or most recent session
func (p *Player) Stats() Stats {
	p.mu.Lock()
	s := p.sess
	p.mu.Unlock()

	if s == nil {
		return Stats{}
	}
	return Stats{
		SessionID:    s.id,
		State:        s.conn.State(),
		Received:     s.stats.received.Load(),
		Played:       s.stats.played.Load(),
		Dropped:      s.stats.dropped.Load(),
		Cleared:      s.stats.cleared.Load(),
		DecodeErrors: s.stats.decodeErrors.Load(),
		WriteErrors:  s.stats.writeErrors.Load(),
		BufferDepth:  s.buf.Len(),
		RTT:          s.latency.rtt(),
	}
}

func (p *Player) notify(s Status) {
	if p.config.OnStatus != nil {
		p.config.OnStatus(s)
	}
}

func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
