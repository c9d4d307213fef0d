// ABOUTME: HTTP status API for the broadcast server
// ABOUTME: GET /status reports clients and stream info; POST /global-sync resyncs players
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ClientStatus describes one connected client
type ClientStatus struct {
	ID          string    `json:"id"`
	Addr        string    `json:"addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Dropped     int64     `json:"dropped"`
}

// Status is the server state served by GET /status
type Status struct {
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	ServerID      string         `json:"server_id"`
	Source        string         `json:"source"`
	SampleRate    int            `json:"sample_rate"`
	Channels      int            `json:"channels"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	ChunksSent    int64          `json:"chunks_sent"`
	Clients       []ClientStatus `json:"clients"`
}

// Status returns a snapshot of the server state
func (s *Server) Status() Status {
	st := Status{
		Name:          s.config.Name,
		Version:       version.Version,
		ServerID:      s.serverID,
		Source:        s.source.Name(),
		SampleRate:    s.source.SampleRate(),
		Channels:      s.source.Channels(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		ChunksSent:    s.chunksSent.Load(),
		Clients:       []ClientStatus{},
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		st.Clients = append(st.Clients, ClientStatus{
			ID:          c.ID,
			Addr:        c.Addr,
			ConnectedAt: c.Connected,
			Dropped:     c.dropped.Load(),
		})
	}
	return st
}

func (s *Server) statusRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	r.Get("/", s.handleStatus)
	r.Get("/status", s.handleStatus)
	r.Post("/global-sync", s.handleGlobalSync)
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleGlobalSync(w http.ResponseWriter, r *http.Request) {
	n := s.GlobalSync()
	writeJSON(w, http.StatusOK, map[string]int{"clients": n})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
