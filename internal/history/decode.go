package history

import (
	"errors"
	"unicode/utf8"

	"github.com/richhaase/autose/internal/api"
)

var (
	errInvalidUTF8   = errors.New("invalid UTF-8 in stream")
	errTruncatedRune = errors.New("stream ended inside a UTF-8 sequence")
)

// textDecoder converts chunks to text. A rune split across two chunks is held
// back until the rest of it arrives.
type textDecoder struct {
	carry []byte
}

func (d *textDecoder) decode(chunk []byte) (string, error) {
	buf := make([]byte, 0, len(d.carry)+len(chunk))
	buf = append(buf, d.carry...)
	buf = append(buf, chunk...)
	d.carry = nil

	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}

	text := buf[:cut]
	if !utf8.Valid(text) {
		return "", api.ChunkDecodeError(errInvalidUTF8)
	}
	d.carry = buf[cut:]
	return string(text), nil
}

func (d *textDecoder) finish() error {
	if len(d.carry) > 0 {
		return api.ChunkDecodeError(errTruncatedRune)
	}
	return nil
}
