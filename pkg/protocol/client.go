// ABOUTME: WebSocket transport for sync-stream protocol communication
// ABOUTME: Handles dialing, serialized sends, deadline-bound reads and close codes
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPort is the sync-stream server port
	DefaultPort = 8765

	// CloseAbnormal is reported when the connection dropped without a close frame
	CloseAbnormal = websocket.CloseAbnormalClosure

	closeGracePeriod = time.Second
)

// DialOptions holds transport timeouts
type DialOptions struct {
	// HandshakeTimeout bounds the WebSocket opening handshake
	HandshakeTimeout time.Duration

	// ReadTimeout is the maximum silence before the connection is
	// considered dead. Zero disables the deadline.
	ReadTimeout time.Duration

	// WriteTimeout bounds each send
	WriteTimeout time.Duration
}

// Conn is a client connection to a sync-stream server.
// Send is safe for concurrent use; Receive must be called from one goroutine.
type Conn struct {
	ws   *websocket.Conn
	opts DialOptions
	addr string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// URL returns the endpoint for host and port
func URL(host string, port int) string {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port))}
	return u.String()
}

// Dial opens a connection to ws://host:port
func Dial(ctx context.Context, host string, port int, opts DialOptions) (*Conn, error) {
	addr := URL(host, port)

	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return &Conn{ws: ws, opts: opts, addr: addr}, nil
}

// Addr returns the endpoint this connection was dialed to
func (c *Conn) Addr() string {
	return c.addr
}

// Send encodes and writes a message as a text frame
func (c *Conn) Send(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.WriteTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Receive blocks for the next text message. Binary frames are not part of
// the protocol and are skipped.
func (c *Conn) Receive() ([]byte, error) {
	for {
		if c.opts.ReadTimeout > 0 {
			c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		}

		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}

		if messageType == websocket.TextMessage {
			return data, nil
		}
		log.Debug().Int("frame_type", messageType).Msg("Skipping non-text frame")
	}
}

// Close sends a normal close frame (best effort) and closes the socket.
// It is safe to call more than once and unblocks a pending Receive.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		// WriteControl may run concurrently with a blocked Send
		deadline := time.Now().Add(closeGracePeriod)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// CloseCode extracts the WebSocket close code from a Receive error.
// Anything other than a close frame counts as an abnormal closure.
func CloseCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return CloseAbnormal
}
