package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderLen  = 4
	MaxPayload = 1024 * 1024
)

var (
	ErrPeerClosed       = errors.New("frame: peer closed")
	ErrShortHeader      = errors.New("frame: short length header")
	ErrEmptyFrame       = errors.New("frame: zero length frame")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
	ErrTruncatedPayload = errors.New("frame: truncated payload")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: MaxPayload}
}

// Normalize clamps the payload bound to [1, MaxPayload].
func (l Limits) Normalize() Limits {
	if l.MaxPayloadBytes == 0 || l.MaxPayloadBytes > MaxPayload {
		l.MaxPayloadBytes = MaxPayload
	}
	return l
}

// ReadFrame reads one length-prefixed payload. A stream that ends before any
// header byte arrives yields ErrPeerClosed.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	limits = limits.Normalize()

	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrPeerClosed
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrShortHeader
		}
		return nil, err
	}

	n, err := DecodeHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	if n > limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, limits.MaxPayloadBytes)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedPayload
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes the length header followed by the payload. Zero-length
// payloads are permitted.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	limits = limits.Normalize()
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), limits.MaxPayloadBytes)
	}
	if err := writeFull(w, EncodeHeader(uint32(len(payload)))); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := writeFull(w, payload); err != nil {
			return err
		}
	}
	return nil
}

// writeFull keeps writing until b is drained. A write that makes no progress
// without reporting an error is treated as fatal.
func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func EncodeHeader(n uint32) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf, n)
	return buf
}

func DecodeHeader(b []byte) (uint32, error) {
	if len(b) != HeaderLen {
		return 0, fmt.Errorf("frame: invalid header length: %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// IsProtocolError reports whether err is a framing violation rather than a
// transport failure or a clean disconnect.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrShortHeader) ||
		errors.Is(err, ErrEmptyFrame) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrTruncatedPayload)
}

// ErrorKind returns a short metric label for a read/write failure.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPeerClosed):
		return "peer_closed"
	case errors.Is(err, ErrShortHeader):
		return "short_header"
	case errors.Is(err, ErrEmptyFrame):
		return "empty_frame"
	case errors.Is(err, ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, ErrTruncatedPayload):
		return "truncated"
	default:
		return "transport"
	}
}
