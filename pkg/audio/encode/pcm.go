// ABOUTME: PCM audio encoder for sync-stream audio messages
// ABOUTME: Encodes PCM16 samples into base64 little-endian payloads
package encode

import (
	"encoding/base64"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
)

// Base64PCM16 encodes samples as the audio field of an audio message
func Base64PCM16(samples []int16) string {
	return base64.StdEncoding.EncodeToString(audio.AppendBytes(nil, samples))
}
