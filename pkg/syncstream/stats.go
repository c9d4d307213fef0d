// ABOUTME: Playback statistics
// ABOUTME: Counters shared by the connection and playback goroutines
package syncstream

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of session counters
type Stats struct {
	SessionID    string
	State        ConnectionState
	Received     int64 // Audio chunks accepted from the server
	Played       int64 // Chunks fully written to the output
	Dropped      int64 // Chunks evicted by buffer overflow
	Cleared      int64 // Chunks discarded by global_sync
	DecodeErrors int64 // Malformed messages and undecodable payloads
	WriteErrors  int64 // Chunks abandoned after an output error
	BufferDepth  int   // Chunks currently buffered
	RTT          time.Duration
}

type counters struct {
	received     atomic.Int64
	played       atomic.Int64
	dropped      atomic.Int64
	cleared      atomic.Int64
	decodeErrors atomic.Int64
	writeErrors  atomic.Int64
}
