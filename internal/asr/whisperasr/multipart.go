package whisperasr

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	boundaryLength   = 16
	boundaryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	boundaryPrefix   = "----"
	audioFieldName   = "audio_file"
)

// newBoundary returns a random alphanumeric token read from src.
func newBoundary(src io.Reader) (string, error) {
	out := make([]byte, 0, boundaryLength)
	buf := make([]byte, boundaryLength)
	// 248 is the largest multiple of 62 below 256; larger bytes are rejected
	// to keep the alphabet uniform.
	for len(out) < boundaryLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("read random boundary: %w", err)
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			out = append(out, boundaryAlphabet[int(b)%len(boundaryAlphabet)])
			if len(out) == boundaryLength {
				break
			}
		}
	}
	return string(out), nil
}

// multipartPayload is a single-part form body carrying the audio bytes.
type multipartPayload struct {
	ContentType string
	Body        []byte
}

// encodeAudio frames audio as multipart/form-data. The boundary parameter in
// ContentType is "----"+token and every delimiter in the body is "--" plus
// that same parameter.
func encodeAudio(token string, audio []byte) multipartPayload {
	boundary := boundaryPrefix + token

	var buf bytes.Buffer
	buf.Grow(len(audio) + 256)
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString(`Content-Disposition: form-data; name="` + audioFieldName + `"; filename="blob"` + "\r\n")
	buf.WriteString(`Content-Type: "application/octet-stream"` + "\r\n\r\n")
	buf.Write(audio)
	buf.WriteString("\r\n--" + boundary + "--")

	return multipartPayload{
		ContentType: "multipart/form-data; boundary=" + boundary,
		Body:        buf.Bytes(),
	}
}

func randomBoundary() (string, error) {
	return newBoundary(rand.Reader)
}
