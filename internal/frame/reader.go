// internal/frame/reader.go
package frame

import (
	"bytes"
	"errors"
	"time"

	"github.com/tamzrod/gem-poller/internal/transport"
)

// Source is the part of a transport the reader needs.
type Source interface {
	Receive(maxWait time.Duration) ([]byte, error)
}

// Reader assembles exactly one validated frame.
// Bytes past the end of a frame are kept for the next call; Reset drops them.
type Reader interface {
	ReadFrame(src Source, wait time.Duration) ([]byte, error)
	Reset()
}

// ------------------------------------------------------------
// BINARY (fixed length, trailing sum-of-bytes checksum)
// ------------------------------------------------------------

// Binary reads fixed-length frames.
type Binary struct {
	length  int
	pending []byte
}

// NewBinary returns a reader for frames of exactly length bytes.
func NewBinary(length int) *Binary {
	return &Binary{length: length}
}

func (r *Binary) Reset() { r.pending = nil }

// ReadFrame accumulates until length bytes are in hand or wait elapses.
func (r *Binary) ReadFrame(src Source, wait time.Duration) ([]byte, error) {
	buf := r.pending
	r.pending = nil
	deadline := time.Now().Add(wait)

	for len(buf) < r.length {
		chunk, err := src.Receive(remaining(deadline))
		if err != nil {
			return nil, incomplete(err, r.length, len(buf))
		}
		buf = append(buf, chunk...)
	}

	frame := buf[:r.length:r.length]
	if len(buf) > r.length {
		r.pending = append([]byte(nil), buf[r.length:]...)
	}

	if err := CheckBinary(frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// CheckBinary validates envelope markers, then the checksum byte.
// Layout: FE FF ... FE FF sum.
func CheckBinary(f []byte) error {
	n := len(f)
	if n < 6 {
		return &IncompleteFrameError{Want: 6, Got: n}
	}
	if f[0] != 0xFE || f[1] != 0xFF || f[n-3] != 0xFE || f[n-2] != 0xFF {
		return &ChecksumError{Envelope: true}
	}

	want := Sum(f[:n-1])
	if want != f[n-1] {
		return &ChecksumError{Want: uint16(want), Got: uint16(f[n-1])}
	}
	return nil
}

// Sum is the low byte of the arithmetic sum of b.
func Sum(b []byte) byte {
	var s byte
	for _, x := range b {
		s += x
	}
	return s
}

// ------------------------------------------------------------
// ASCII (terminator delimited, optional CRC16 field)
// ------------------------------------------------------------

// DefaultMaxFrame guards ASCII accumulation.
const DefaultMaxFrame = 4096

// ASCII reads terminator-delimited frames.
type ASCII struct {
	term    []byte
	max     int
	pending []byte
}

// NewASCII returns a reader splitting on term. max <= 0 uses DefaultMaxFrame.
func NewASCII(term string, max int) *ASCII {
	if max <= 0 {
		max = DefaultMaxFrame
	}
	return &ASCII{term: []byte(term), max: max}
}

func (r *ASCII) Reset() { r.pending = nil }

// ReadFrame returns one frame including its terminator.
func (r *ASCII) ReadFrame(src Source, wait time.Duration) ([]byte, error) {
	buf := r.pending
	r.pending = nil
	deadline := time.Now().Add(wait)

	for {
		if i := bytes.Index(buf, r.term); i >= 0 {
			end := i + len(r.term)
			if end > r.max {
				return nil, &FrameTooLargeError{Max: r.max, Got: end}
			}
			frame := buf[:end:end]
			if len(buf) > end {
				r.pending = append([]byte(nil), buf[end:]...)
			}
			if err := CheckASCII(frame); err != nil {
				return nil, err
			}
			return frame, nil
		}

		if len(buf) > r.max {
			return nil, &FrameTooLargeError{Max: r.max, Got: len(buf)}
		}

		chunk, err := src.Receive(remaining(deadline))
		if err != nil {
			return nil, incomplete(err, r.max, len(buf))
		}
		buf = append(buf, chunk...)
	}
}

// ---- helpers ----

// incomplete converts a timeout after partial data into IncompleteFrameError.
// A timeout with nothing received stays a transport error.
func incomplete(err error, want, got int) error {
	var te *transport.TimeoutError
	if errors.As(err, &te) && got > 0 {
		return &IncompleteFrameError{Want: want, Got: got}
	}
	return err
}

func remaining(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
