// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and oto, PulseAudio, PortAudio and null backends
// Package output provides blocking audio playback backends.
//
// Every backend paces Write at the device rate: a call returns once the
// device has accepted the samples, or with ErrClosed once Close has run.
//
//   - oto: default, pure Go on most platforms
//   - pulse: native PulseAudio protocol (linux)
//   - portaudio: requires cgo and -tags portaudio
//   - null: discards audio at real-time pace
//
// Example:
//
//	out, err := output.New("oto")
//	err = out.Open(audio.DefaultFormat())
//	n, err := out.Write(chunk)
package output
