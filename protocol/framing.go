package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame format: [4-byte big-endian payload length][payload], where the
// payload is exactly one encoded record. The prefix restores message
// boundaries on stream transports: a record decodes identically no matter
// how the underlying reads were segmented, and content is free to contain
// the record delimiter past the header fields.

const frameHeaderSize = 4

// DefaultMaxFrame bounds the payload length ReadFrame accepts when the
// caller passes a non-positive limit.
const DefaultMaxFrame = 64 * 1024

// ErrFrameTooLarge reports a frame header announcing more bytes than the
// reader is willing to buffer.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes one length-prefixed payload. Header and payload go out
// in a single Write call, so concurrent writers sharing a lock interleave
// on frame boundaries only.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[frameHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed payload of at most maxSize bytes.
// A short stream yields io.EOF on a clean boundary and
// io.ErrUnexpectedEOF mid-frame.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if maxSize <= 0 {
		maxSize = DefaultMaxFrame
	}
	if int64(size) > int64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
