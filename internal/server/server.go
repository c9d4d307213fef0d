// ABOUTME: Broadcast server for the sync-stream protocol
// ABOUTME: Manages WebSocket clients and answers their ping and sync requests
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/internal/discovery"
	"github.com/Resonate-Protocol/syncstream-go/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHTTPPort      = 5000
	DefaultChunkFrames   = 512
	DefaultPlayDelay     = 50 * time.Millisecond
	DefaultSyncInterval  = time.Second
	DefaultBufferSeconds = 5

	clientQueueDepth = 64
	writeDeadline    = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Config holds server configuration
type Config struct {
	Port          int    // WebSocket port
	HTTPPort      int    // Status API port, 0 disables it
	Name          string // Advertised name
	EnableMDNS    bool
	ChunkFrames   int
	PlayDelay     time.Duration // Added to the capture time for play_at
	SyncInterval  time.Duration
	BufferSeconds int // Buffer hint sent in init
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = protocol.DefaultPort
	}
	if c.Name == "" {
		c.Name = "syncstream"
	}
	if c.ChunkFrames == 0 {
		c.ChunkFrames = DefaultChunkFrames
	}
	if c.PlayDelay == 0 {
		c.PlayDelay = DefaultPlayDelay
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.BufferSeconds == 0 {
		c.BufferSeconds = DefaultBufferSeconds
	}
}

// Server broadcasts one audio source to every connected client
type Server struct {
	config   Config
	serverID string
	source   Source

	upgrader websocket.Upgrader

	clients   map[string]*Client
	clientsMu sync.RWMutex
	closing   bool // Set by closeClients; no registrations after it

	startTime  time.Time
	chunksSent atomic.Int64

	wg sync.WaitGroup
}

// Client is a connected player
type Client struct {
	ID        string
	Addr      string
	Conn      *websocket.Conn
	Connected time.Time

	sendChan chan []byte
	dropped  atomic.Int64
}

// New creates a server streaming from source
func New(config Config, source Source) *Server {
	config.applyDefaults()

	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		source:   source,
		upgrader: websocket.Upgrader{
			// Players connect from anywhere on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[string]*Client),
		startTime: time.Now(),
	}
}

// Run serves until ctx is cancelled or a listener fails
func (s *Server) Run(ctx context.Context) error {
	log.Info().Str("name", s.config.Name).Str("id", s.serverID).Str("source", s.source.Name()).
		Msg("Server starting")

	g, gctx := errgroup.WithContext(ctx)

	wsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.websocketHandler(),
	}
	g.Go(func() error { return serve(gctx, wsServer) })
	log.Info().Str("addr", wsServer.Addr).Msg("WebSocket server listening")

	if s.config.HTTPPort > 0 {
		statusServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", s.config.HTTPPort),
			Handler: s.statusRouter(),
		}
		g.Go(func() error { return serve(gctx, statusServer) })
		log.Info().Str("addr", statusServer.Addr).Msg("Status API listening")
	}

	g.Go(func() error {
		s.streamLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.syncLoop(gctx)
		return nil
	})

	if s.config.EnableMDNS {
		mdnsManager := discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			TXT:         []string{"id=" + s.serverID},
		})
		if err := mdnsManager.Advertise(); err != nil {
			log.Warn().Err(err).Msg("Failed to start mDNS advertisement")
		} else {
			defer mdnsManager.Stop()
		}
	}

	err := g.Wait()

	s.closeClients()
	s.wg.Wait()
	log.Info().Msg("Server stopped")
	return err
}

// serve runs srv until ctx ends, then shuts it down gracefully
func serve(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %w", srv.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Str("addr", srv.Addr).Msg("HTTP shutdown error")
		}
		return nil
	}
}

func (s *Server) websocketHandler() http.Handler {
	return http.HandlerFunc(s.handleWebSocket)
}

// handleWebSocket upgrades and serves one client
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	s.handleConnection(conn, r.RemoteAddr)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn, addr string) {
	defer conn.Close()

	client := &Client{
		ID:        uuid.New().String(),
		Addr:      addr,
		Conn:      conn,
		Connected: time.Now(),
		sendChan:  make(chan []byte, clientQueueDepth),
	}

	count, ok := s.register(client)
	if !ok {
		log.Debug().Str("addr", addr).Msg("Refusing client during shutdown")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		return
	}

	log.Info().Str("client", client.ID).Str("addr", addr).Int("clients", count).Msg("Client connected")

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		count := len(s.clients)
		s.clientsMu.Unlock()

		log.Info().Str("client", client.ID).Int("clients", count).Msg("Client disconnected")
	}()

	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	s.send(client, protocol.NewInit(time.Now(), s.source.SampleRate(), s.config.BufferSeconds,
		"Connected to synchronized audio stream"))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("client", client.ID).Msg("WebSocket error")
			}
			return
		}
		s.handleClientMessage(client, data)
	}
}

// register adds the client and accounts for its writer goroutine in one
// step with shutdown, so Run never waits on a writer it cannot close
func (s *Server) register(client *Client) (int, bool) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closing {
		return 0, false
	}
	s.clients[client.ID] = client
	s.wg.Add(1)
	return len(s.clients), true
}

// clientWriter sends queued messages to the client
func (s *Server) clientWriter(client *Client) {
	for data := range client.sendChan {
		client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("client", client.ID).Msg("Write failed")
			// Unblocks the reader, which unregisters the client
			client.Conn.Close()
			for range client.sendChan {
			}
			return
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("client", client.ID).Msg("Invalid message from client")
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		s.send(client, protocol.NewPong(time.Now(), msg.ClientTime))
	case protocol.TypeSyncRequest:
		s.send(client, protocol.NewSyncResponse(time.Now()))
	default:
		log.Debug().Str("type", msg.Type).Str("client", client.ID).Msg("Unhandled message type")
	}
}

// send queues a message for one client, dropping it if the client is behind.
// Must only be called from the client's reader or under clientsMu.
func (s *Server) send(client *Client, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode message")
		return
	}
	s.enqueue(client, data)
}

func (s *Server) enqueue(client *Client, data []byte) {
	select {
	case client.sendChan <- data:
	default:
		client.dropped.Add(1)
	}
}

// broadcast queues a message for every client and returns how many there are
func (s *Server) broadcast(msg protocol.Message) int {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode message")
		return 0
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		s.enqueue(client, data)
	}
	return len(s.clients)
}

// GlobalSync tells every client to clear its buffer
func (s *Server) GlobalSync() int {
	n := s.broadcast(protocol.NewGlobalSync())
	log.Info().Int("clients", n).Msg("Global sync sent")
	return n
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.closing = true

	for _, client := range s.clients {
		client.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.Conn.Close()
	}
}
