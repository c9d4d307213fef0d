// ABOUTME: Tests for the Player lifecycle
// ABOUTME: Start/Stop, sink failures, forced shutdown and reconnect
package syncstream

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/Resonate-Protocol/syncstream-go/pkg/audio/output"
	"github.com/gorilla/websocket"
)

func newTestPlayer(t *testing.T, sink output.Output, status *statusRecorder) *Player {
	t.Helper()
	p, err := NewPlayer(Config{
		Sink:        sink,
		Backoff:     Backoff{Initial: 10 * time.Millisecond, Factor: 2, Max: 40 * time.Millisecond},
		StopTimeout: 100 * time.Millisecond,
		OnStatus:    status.record,
	})
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	t.Cleanup(func() { p.Stop() })
	return p
}

func TestNewPlayerDefaults(t *testing.T) {
	p, err := NewPlayer(Config{})
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}

	c := p.config
	if c.BufferCapacity != DefaultBufferCapacity {
		t.Errorf("expected buffer capacity %d, got %d", DefaultBufferCapacity, c.BufferCapacity)
	}
	if c.Format != audio.DefaultFormat() {
		t.Errorf("expected default format, got %+v", c.Format)
	}
	if c.HeartbeatInterval != 2*time.Second {
		t.Errorf("expected 2s heartbeat, got %v", c.HeartbeatInterval)
	}
	if c.Backoff.Initial != time.Second || c.Backoff.Max != 30*time.Second || c.Backoff.Factor != 2 {
		t.Errorf("unexpected backoff defaults %+v", c.Backoff)
	}
	if _, ok := c.Sink.(*output.Oto); !ok {
		t.Errorf("expected oto sink by default, got %T", c.Sink)
	}
	if c.Lock == nil {
		t.Error("expected a default lock")
	}
	if p.Running() || p.State() != Disconnected {
		t.Error("new player must be idle")
	}
	if p.Stats() != (Stats{}) {
		t.Errorf("expected empty stats, got %+v", p.Stats())
	}
}

func TestNewPlayerRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"negative buffer", Config{BufferCapacity: -1}},
		{"negative heartbeat", Config{HeartbeatInterval: -time.Second}},
		{"shrinking backoff", Config{Backoff: Backoff{Initial: time.Second, Factor: 0.5, Max: time.Minute}}},
		{"max below initial", Config{Backoff: Backoff{Initial: time.Minute, Factor: 2, Max: time.Second}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPlayer(tt.config); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPlayerStartStop(t *testing.T) {
	ts := newTestServer(t)
	sink := &memorySink{}
	status := &statusRecorder{}
	p := newTestPlayer(t, sink, status)

	if err := p.Start(ts.host, ts.port); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	server := ts.accept(t)
	readMessage(t, server) // sync_request

	eventually(t, func() bool { return p.State() == Connected }, "never connected")
	if !p.Running() {
		t.Error("expected Running after Start")
	}

	writeText(t, server, audioMessage(5, 6))
	eventually(t, func() bool { return p.Stats().Played == 1 }, "audio not played")

	stats := p.Stats()
	if stats.SessionID == "" || stats.Received != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	start := time.Now()
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v", elapsed)
	}

	if p.Running() {
		t.Error("expected not running after Stop")
	}
	if sink.closeCount() == 0 {
		t.Error("expected output closed after Stop")
	}
	for _, want := range []string{"Connecting…", "Connected", "Stopped"} {
		if !status.has(want) {
			t.Errorf("missing status %q in %v", want, status.texts)
		}
	}

	// Stopping twice is a no-op
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop returned %v", err)
	}
}

func TestPlayerStartTwice(t *testing.T) {
	ts := newTestServer(t)
	p := newTestPlayer(t, &memorySink{}, &statusRecorder{})

	if err := p.Start(ts.host, ts.port); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(ts.host, ts.port); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestPlayerRestartAfterStop(t *testing.T) {
	ts := newTestServer(t)
	sink := &memorySink{}
	p := newTestPlayer(t, sink, &statusRecorder{})

	for i := 0; i < 2; i++ {
		if err := p.Start(ts.host, ts.port); err != nil {
			t.Fatalf("Start %d failed: %v", i, err)
		}
		ts.accept(t)
		eventually(t, func() bool { return p.State() == Connected }, "start %d never connected", i)
		if err := p.Stop(); err != nil {
			t.Fatalf("Stop %d failed: %v", i, err)
		}
	}
	if sink.opens != 2 {
		t.Errorf("expected output opened per session, got %d", sink.opens)
	}
}

func TestPlayerSinkUnavailable(t *testing.T) {
	ts := newTestServer(t)
	sink := &memorySink{openErr: errors.New("no device")}
	status := &statusRecorder{}
	p := newTestPlayer(t, sink, status)

	err := p.Start(ts.host, ts.port)
	if !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("expected ErrSinkUnavailable, got %v", err)
	}
	if p.Running() {
		t.Error("player must not run without an output")
	}
	if p.State() == Connected {
		t.Error("player must not appear connected without an output")
	}
	if !status.has("Error: audio output unavailable: no device") {
		t.Errorf("expected error status, got %v", status.texts)
	}

	select {
	case <-ts.conns:
		t.Error("no connection should be attempted after an output failure")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayerStartRequiresHost(t *testing.T) {
	p := newTestPlayer(t, &memorySink{}, &statusRecorder{})
	if err := p.Start("", 8765); err == nil {
		t.Error("expected error for empty host")
	}
}

// blockingSink never finishes a write until it is closed
type blockingSink struct {
	memorySink
	writing   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{writing: make(chan struct{}), closed: make(chan struct{})}
}

func (b *blockingSink) Write(samples []int16) (int, error) {
	b.startOnce.Do(func() { close(b.writing) })
	<-b.closed
	return 0, output.ErrClosed
}

func (b *blockingSink) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}

func TestPlayerStopForcesStuckOutput(t *testing.T) {
	ts := newTestServer(t)
	sink := newBlockingSink()
	p := newTestPlayer(t, sink, &statusRecorder{})

	if err := p.Start(ts.host, ts.port); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	server := ts.accept(t)
	writeText(t, server, audioMessage(1, 2))

	select {
	case <-sink.writing:
	case <-time.After(3 * time.Second):
		t.Fatal("playback never reached the output")
	}

	start := time.Now()
	if err := p.Stop(); err != nil {
		t.Fatalf("expected forced close to unblock playback, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Errorf("expected Stop to wait one timeout before forcing, took %v", elapsed)
	}
}

func TestPlayerReadersDoNotWaitOnStop(t *testing.T) {
	ts := newTestServer(t)
	sink := newBlockingSink()
	p := newTestPlayer(t, sink, &statusRecorder{})

	if err := p.Start(ts.host, ts.port); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	server := ts.accept(t)
	writeText(t, server, audioMessage(1, 2))

	select {
	case <-sink.writing:
	case <-time.After(3 * time.Second):
		t.Fatal("playback never reached the output")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- p.Stop() }()

	// Stop now spends StopTimeout (100ms) waiting on the stuck write
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	running := p.Running()
	stats := p.Stats()
	_ = p.State()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("readers blocked for %v during Stop", elapsed)
	}
	if running {
		t.Error("expected Running to report false once Stop began")
	}
	if stats.SessionID == "" {
		t.Error("expected stats for the stopping session")
	}

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}
}

func TestPlayerReconnectsAfterServerClose(t *testing.T) {
	ts := newTestServer(t)
	status := &statusRecorder{}
	p := newTestPlayer(t, &memorySink{}, status)

	if err := p.Start(ts.host, ts.port); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first := ts.accept(t)
	first.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
	first.Close()

	second := ts.accept(t)
	if msg := readMessage(t, second); msg["type"] != "sync_request" {
		t.Errorf("expected sync_request on reconnect, got %v", msg)
	}
	eventually(t, func() bool { return p.State() == Connected }, "never reconnected")
	if !status.has("Disconnected (1001)") {
		t.Errorf("expected disconnect status, got %v", status.texts)
	}
}

func TestPlayerRetriesUnreachableServer(t *testing.T) {
	ts := newTestServer(t)
	host, port := ts.host, ts.port
	ts.srv.Close()

	status := &statusRecorder{}
	p := newTestPlayer(t, &memorySink{}, status)

	if err := p.Start(host, port); err != nil {
		t.Fatalf("connection failures must not fail Start: %v", err)
	}
	eventually(t, func() bool {
		status.mu.Lock()
		defer status.mu.Unlock()
		n := 0
		for _, s := range status.texts {
			if s == "Connecting…" {
				n++
			}
		}
		return n >= 3
	}, "expected repeated connection attempts")

	if !p.Running() {
		t.Error("player should keep running while the server is down")
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
