// ABOUTME: Audio encoder package for sync-stream payloads
// ABOUTME: Provides PCM16 to base64 encoding used by broadcast servers
// Package encode produces the audio field of an audio message.
//
// Example:
//
//	payload := encode.Base64PCM16(samples)
package encode
