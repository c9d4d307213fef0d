// ABOUTME: Tests for sync-stream protocol messages
// ABOUTME: Verifies the codec, wire shapes and tolerance of unknown input
package protocol

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestSyncRequestWireShape(t *testing.T) {
	data, err := Encode(NewSyncRequest())
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	if string(data) != `{"type":"sync_request"}` {
		t.Errorf("unexpected sync_request encoding: %s", data)
	}
}

func TestPingRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 123456000)
	perf := 98765432 * time.Microsecond

	data, err := Encode(NewPing(now, perf))
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if decoded.Type != TypePing {
		t.Errorf("expected type ping, got %s", decoded.Type)
	}
	if decoded.ClientTime == nil || decoded.PerformanceTime == nil {
		t.Fatal("expected client_time and performance_time to be present")
	}
	if *decoded.ClientTime != UnixSeconds(now) {
		t.Errorf("client_time changed: sent %f, got %f", UnixSeconds(now), *decoded.ClientTime)
	}
	if math.Abs(*decoded.PerformanceTime-98765.432) > 1e-9 {
		t.Errorf("expected performance_time 98765.432ms, got %f", *decoded.PerformanceTime)
	}
}

func TestDecodeServerMessages(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		typ   string
		known bool
	}{
		{"audio", `{"type":"audio","audio":"AQACAA==","timestamp":1.5,"play_at":1.55,"sample_rate":44100,"channels":2}`, TypeAudio, true},
		{"pong", `{"type":"pong","server_time":10.5,"client_time":10.25}`, TypePong, true},
		{"sync", `{"type":"sync","server_time":10.5,"client_count":3}`, TypeSync, true},
		{"sync_response", `{"type":"sync_response","server_time":10.5}`, TypeSyncResponse, true},
		{"global_sync", `{"type":"global_sync"}`, TypeGlobalSync, true},
		{"init", `{"type":"init","sample_rate":44100,"buffer_size":5,"message":"hi"}`, TypeInit, true},
		{"unknown type", `{"type":"volume","level":3}`, "volume", false},
		{"extra fields", `{"type":"pong","nested":{"a":[1,2]}}`, TypePong, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Type != tt.typ {
				t.Errorf("expected type %s, got %s", tt.typ, msg.Type)
			}
			if msg.Known() != tt.known {
				t.Errorf("expected Known()=%v for %s", tt.known, tt.typ)
			}
		})
	}
}

func TestDecodeAudioFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"audio","audio":"AQACAA==","play_at":2.5,"sample_rate":44100,"channels":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Audio != "AQACAA==" {
		t.Errorf("unexpected audio payload %q", msg.Audio)
	}
	if msg.PlayAt == nil || *msg.PlayAt != 2.5 {
		t.Errorf("expected play_at 2.5, got %v", msg.PlayAt)
	}
	if msg.SampleRate != 44100 || msg.Channels != 2 {
		t.Errorf("unexpected format %dHz %dch", msg.SampleRate, msg.Channels)
	}
	if msg.ClientTime != nil {
		t.Error("expected absent client_time to stay nil")
	}
}

func TestDecodeToleratesMetadataTypes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		typ      string
		audio    string
		rate     int
		channels int
		buffer   int
		clients  int
	}{
		{"float sample rate", `{"type":"audio","audio":"AQACAA==","sample_rate":44100.0}`, TypeAudio, "AQACAA==", 44100, 0, 0, 0},
		{"string channels", `{"type":"audio","audio":"AQACAA==","channels":"2"}`, TypeAudio, "AQACAA==", 0, 2, 0, 0},
		{"fractional buffer size", `{"type":"init","buffer_size":0.5}`, TypeInit, "", 0, 0, 0, 0},
		{"string client count", `{"type":"sync","client_count":"3"}`, TypeSync, "", 0, 0, 0, 3},
		{"non-numeric string", `{"type":"audio","audio":"AQACAA==","sample_rate":"fast"}`, TypeAudio, "AQACAA==", 0, 0, 0, 0},
		{"object channels", `{"type":"audio","audio":"AQACAA==","channels":{"n":2}}`, TypeAudio, "AQACAA==", 0, 0, 0, 0},
		{"null sample rate", `{"type":"audio","audio":"AQACAA==","sample_rate":null}`, TypeAudio, "AQACAA==", 0, 0, 0, 0},
		{"huge client count", `{"type":"sync","client_count":1e300}`, TypeSync, "", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Type != tt.typ || msg.Audio != tt.audio {
				t.Errorf("expected %s with audio %q, got %s with %q", tt.typ, tt.audio, msg.Type, msg.Audio)
			}
			if msg.SampleRate != tt.rate || msg.Channels != tt.channels ||
				msg.BufferSize != tt.buffer || msg.ClientCount != tt.clients {
				t.Errorf("unexpected metadata rate=%d channels=%d buffer=%d clients=%d",
					msg.SampleRate, msg.Channels, msg.BufferSize, msg.ClientCount)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"array", `[1,2,3]`},
		{"string", `"audio"`},
		{"null", `null`},
		{"missing type", `{"audio":"AQA="}`},
		{"empty type", `{"type":""}`},
		{"numeric type", `{"type":5}`},
		{"wrong field type", `{"type":"audio","audio":12}`},
		{"truncated", `{"type":"au`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestEncodeRequiresType(t *testing.T) {
	if _, err := Encode(Message{}); err == nil {
		t.Error("expected error encoding message without type")
	}
}

func TestUnixSecondsConversion(t *testing.T) {
	now := time.Unix(1700000000, 250000000)

	back := FromUnixSeconds(UnixSeconds(now))
	if diff := back.Sub(now); diff > time.Microsecond || diff < -time.Microsecond {
		t.Errorf("expected conversion within 1µs, off by %v", diff)
	}
}

func TestNewPongEchoesClientTime(t *testing.T) {
	pong := NewPong(time.Now(), Float(42.5))

	if pong.ClientTime == nil || *pong.ClientTime != 42.5 {
		t.Errorf("expected echoed client_time 42.5, got %v", pong.ClientTime)
	}
	if pong.ServerTime == nil {
		t.Error("expected server_time to be set")
	}
}
