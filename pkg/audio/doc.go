// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and Chunk types and PCM16 byte conversion
// Package audio provides the PCM types shared by the decoder, the
// playback buffer and the output sinks.
//
//   - Format: sample rate and channel count of the stream
//   - Chunk: interleaved signed 16-bit samples decoded from one message
//
// Example:
//
//	chunk := audio.FromBytes(pcm)
//	frames := chunk.Frames(audio.DefaultChannels)
package audio
