// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests base64 PCM16 decoding and its edge cases
package decode

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestBase64PCM16(t *testing.T) {
	field := base64.StdEncoding.EncodeToString([]byte{0x01, 0x00, 0x02, 0x00})

	samples, err := Base64PCM16(field)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 1 || samples[1] != 2 {
		t.Errorf("expected [1 2], got %v", samples)
	}
}

func TestBase64PCM16OddByteDropped(t *testing.T) {
	field := base64.StdEncoding.EncodeToString([]byte{0x05, 0x00, 0x07})

	samples, err := Base64PCM16(field)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(samples) != 1 {
		t.Fatalf("expected exactly 1 sample, got %d", len(samples))
	}
	if samples[0] != 5 {
		t.Errorf("expected sample 5, got %d", samples[0])
	}
}

func TestBase64PCM16Signed(t *testing.T) {
	field := base64.StdEncoding.EncodeToString([]byte{0xff, 0xff, 0x00, 0x80, 0xff, 0x7f})

	samples, err := Base64PCM16(field)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	expected := []int16{-1, -32768, 32767}
	for i, want := range expected {
		if samples[i] != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, samples[i])
		}
	}
}

func TestBase64PCM16Empty(t *testing.T) {
	samples, err := Base64PCM16("")
	if err != nil {
		t.Fatalf("expected no error for empty field, got %v", err)
	}
	if samples != nil {
		t.Errorf("expected nil chunk, got %v", samples)
	}
}

func TestBase64PCM16Invalid(t *testing.T) {
	_, err := Base64PCM16("not base64!!")
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}
