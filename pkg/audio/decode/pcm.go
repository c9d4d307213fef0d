// ABOUTME: PCM audio decoder for sync-stream audio messages
// ABOUTME: Decodes base64 little-endian PCM16 payloads into sample chunks
package decode

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/syncstream-go/pkg/audio"
)

// ErrInvalidPayload is returned when an audio field is not valid base64
var ErrInvalidPayload = errors.New("invalid audio payload")

// Base64PCM16 decodes the audio field of an audio message.
//
// An empty field is a valid idle message and yields a nil chunk with no
// error. A trailing odd byte is half a sample and is dropped.
func Base64PCM16(field string) (audio.Chunk, error) {
	if field == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return audio.FromBytes(raw), nil
}
