// ABOUTME: Shared test helpers for the syncstream package
// ABOUTME: In-process WebSocket server, fake outputs and polling helpers
package syncstream

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
	"github.com/gorilla/websocket"
)

// testServer accepts WebSocket connections and hands them to the test
type testServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	host  string
	port  int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{}

	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
	}))

	host, portStr, err := net.SplitHostPort(ts.srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	ts.host = host
	ts.port, _ = strconv.Atoi(portStr)

	t.Cleanup(func() {
		ts.srv.CloseClientConnections()
		ts.srv.Close()
	})
	return ts
}

// accept waits for the next client connection
func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ts.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

// readMessage reads the next JSON message from the client
func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read from client: %v", err)
	}
	return msg
}

func writeText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("write to client: %v", err)
	}
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: "+format, args...)
}

// statusRecorder collects status texts
type statusRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, s.Text)
}

func (r *statusRecorder) has(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.texts {
		if t == text {
			return true
		}
	}
	return false
}

// memorySink records writes without pacing
type memorySink struct {
	mu       sync.Mutex
	openErr  error
	maxWrite int // Samples accepted per Write; zero accepts everything
	failNext int // Number of upcoming writes that fail
	samples  []int16
	opens    int
	closes   int
}

var errWriteFailed = errors.New("device error")

func (m *memorySink) Open(format audio.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	return m.openErr
}

func (m *memorySink) Write(samples []int16) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return 0, errWriteFailed
	}
	n := len(samples)
	if m.maxWrite > 0 && n > m.maxWrite {
		n = m.maxWrite
	}
	m.samples = append(m.samples, samples[:n]...)
	return n, nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *memorySink) written() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.samples...)
}

func (m *memorySink) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
