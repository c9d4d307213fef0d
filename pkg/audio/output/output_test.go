// ABOUTME: Audio output interface tests
// ABOUTME: Verifies backend selection and the paced null output
package output

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
)

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
	var _ Output = (*Pulse)(nil)
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Null)(nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"oto", false},
		{"", false},
		{"pulse", false},
		{"PortAudio", false},
		{"null", false},
		{"none", false},
		{"alsa-direct", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unknown backend")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out == nil {
				t.Fatal("expected output to be created")
			}
		})
	}
}

func TestNullPacesWrites(t *testing.T) {
	out := NewNull()
	if err := out.Open(audio.Format{SampleRate: 1000, Channels: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer out.Close()

	// 50 stereo frames at 1kHz = 50ms
	start := time.Now()
	n, err := out.Write(make([]int16, 100))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != 100 {
		t.Errorf("expected 100 samples accepted, got %d", n)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected write to block ~50ms, took %v", elapsed)
	}
}

func TestNullCloseUnblocksWrite(t *testing.T) {
	out := NewNull()
	if err := out.Open(audio.Format{SampleRate: 100, Channels: 1}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := out.Write(make([]int16, 1000)) // 10s of audio
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	out.Close()
	out.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write still blocked after Close")
	}
}

func TestNullWriteBeforeOpen(t *testing.T) {
	if _, err := NewNull().Write([]int16{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed before Open, got %v", err)
	}
}

func TestNullRejectsInvalidFormat(t *testing.T) {
	if err := NewNull().Open(audio.Format{}); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestOtoWriteBeforeOpen(t *testing.T) {
	if _, err := NewOto().Write([]int16{1, 2}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed before Open, got %v", err)
	}
	if err := NewOto().Close(); err != nil {
		t.Errorf("expected Close before Open to be a no-op, got %v", err)
	}
}
