// ABOUTME: Sync-stream protocol message definitions and codec
// ABOUTME: Flat JSON objects discriminated by a "type" field
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Message types
const (
	// Client to server
	TypeSyncRequest = "sync_request"
	TypePing        = "ping"

	// Server to client
	TypeInit         = "init"
	TypeAudio        = "audio"
	TypePong         = "pong"
	TypeSync         = "sync"
	TypeSyncResponse = "sync_response"
	TypeGlobalSync   = "global_sync"
)

// ErrMalformed is wrapped by every Decode error
var ErrMalformed = errors.New("malformed message")

// Message is a single protocol message. Only the fields relevant to Type
// are set; everything else is omitted on the wire.
type Message struct {
	Type string `json:"type"`

	// audio
	Audio     string   `json:"audio,omitempty"`     // Base64 little-endian PCM16
	Timestamp *float64 `json:"timestamp,omitempty"` // Server capture time, seconds
	PlayAt    *float64 `json:"play_at,omitempty"`   // Scheduled play time, seconds

	// ping / pong / sync
	ClientTime      *float64 `json:"client_time,omitempty"`      // Seconds since epoch
	PerformanceTime *float64 `json:"performance_time,omitempty"` // Monotonic milliseconds
	ServerTime      *float64 `json:"server_time,omitempty"`      // Seconds since epoch
	ClientCount     int      `json:"client_count,omitempty"`

	// init / audio format
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	BufferSize int    `json:"buffer_size,omitempty"` // Seconds of audio the server buffers
	Text       string `json:"message,omitempty"`
}

// Known reports whether the message type is part of the protocol.
// Unknown types are valid and ignored by receivers.
func (m Message) Known() bool {
	switch m.Type {
	case TypeSyncRequest, TypePing, TypeInit, TypeAudio, TypePong,
		TypeSync, TypeSyncResponse, TypeGlobalSync:
		return true
	}
	return false
}

// wireMessage shadows the informational integer fields so a server writing
// them as floats or strings does not cost the rest of the message
type wireMessage struct {
	messageFields
	SampleRate  json.RawMessage `json:"sample_rate"`
	Channels    json.RawMessage `json:"channels"`
	BufferSize  json.RawMessage `json:"buffer_size"`
	ClientCount json.RawMessage `json:"client_count"`
}

type messageFields Message

// Decode parses a raw text message. Only type, audio and the time fields
// are strict; sample_rate, channels, buffer_size and client_count are read
// best effort and left zero when unusable.
func Decode(raw []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := Message(wire.messageFields)
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	msg.SampleRate = lenientInt(msg.Type, "sample_rate", wire.SampleRate)
	msg.Channels = lenientInt(msg.Type, "channels", wire.Channels)
	msg.BufferSize = lenientInt(msg.Type, "buffer_size", wire.BufferSize)
	msg.ClientCount = lenientInt(msg.Type, "client_count", wire.ClientCount)
	return msg, nil
}

// lenientInt accepts a JSON number or a numeric string, truncating
// fractions. Anything else is logged and read as 0.
func lenientInt(msgType, field string, raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var str string
		if json.Unmarshal(raw, &str) != nil {
			log.Debug().Str("type", msgType).Str("field", field).RawJSON("value", raw).Msg("Ignoring non-numeric field")
			return 0
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(str), 64); err != nil {
			log.Debug().Str("type", msgType).Str("field", field).Str("value", str).Msg("Ignoring non-numeric field")
			return 0
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// Encode serializes a message for sending
func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("cannot encode message without type")
	}
	return json.Marshal(msg)
}

// Float returns a pointer to v for optional numeric fields
func Float(v float64) *float64 {
	return &v
}

// UnixSeconds converts t to floating-point seconds since the epoch
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts floating-point epoch seconds to a time
func FromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second)))
}

// NewSyncRequest builds the request sent after connecting
func NewSyncRequest() Message {
	return Message{Type: TypeSyncRequest}
}

// NewPing builds a heartbeat carrying wall-clock seconds and monotonic
// milliseconds
func NewPing(clientTime time.Time, performance time.Duration) Message {
	return Message{
		Type:            TypePing,
		ClientTime:      Float(UnixSeconds(clientTime)),
		PerformanceTime: Float(float64(performance) / float64(time.Millisecond)),
	}
}

// NewPong answers a ping, echoing its client time
func NewPong(serverTime time.Time, clientTime *float64) Message {
	return Message{
		Type:       TypePong,
		ServerTime: Float(UnixSeconds(serverTime)),
		ClientTime: clientTime,
	}
}

// NewInit is sent by servers to a freshly connected client
func NewInit(serverTime time.Time, sampleRate, bufferSeconds int, text string) Message {
	return Message{
		Type:       TypeInit,
		ServerTime: Float(UnixSeconds(serverTime)),
		SampleRate: sampleRate,
		BufferSize: bufferSeconds,
		Text:       text,
	}
}

// NewAudio wraps an encoded PCM payload with its timing information
func NewAudio(payload string, captured, playAt time.Time, sampleRate, channels int) Message {
	now := UnixSeconds(captured)
	return Message{
		Type:       TypeAudio,
		Audio:      payload,
		Timestamp:  Float(now),
		PlayAt:     Float(UnixSeconds(playAt)),
		ServerTime: Float(now),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// NewSync is the periodic server timing broadcast
func NewSync(serverTime time.Time, clients int) Message {
	return Message{
		Type:        TypeSync,
		ServerTime:  Float(UnixSeconds(serverTime)),
		ClientCount: clients,
	}
}

// NewSyncResponse answers a sync_request
func NewSyncResponse(serverTime time.Time) Message {
	return Message{
		Type:       TypeSyncResponse,
		ServerTime: Float(UnixSeconds(serverTime)),
	}
}

// NewGlobalSync tells every client to drop buffered audio and realign
func NewGlobalSync() Message {
	return Message{Type: TypeGlobalSync}
}
