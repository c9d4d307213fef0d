// ABOUTME: Audio decoder package for sync-stream payloads
// ABOUTME: Provides base64 PCM16 decoding for audio messages
// Package decode turns the audio field of an audio message into samples.
//
// Example:
//
//	chunk, err := decode.Base64PCM16(msg.Audio)
package decode
