// internal/frame/errors.go
package frame

import "fmt"

// Error codes surfaced through status blocks.
const (
	CodeChecksum   uint16 = 20
	CodeIncomplete uint16 = 21
	CodeTooLarge   uint16 = 22
)

// ChecksumError: the frame arrived whole but failed integrity.
// Envelope is set when the header/footer markers were wrong rather than the sum.
type ChecksumError struct {
	Envelope bool
	Want     uint16
	Got      uint16
}

func (e *ChecksumError) Error() string {
	if e.Envelope {
		return "frame: bad header or footer"
	}
	return fmt.Sprintf("frame: bad checksum: got=0x%02x want=0x%02x", e.Got, e.Want)
}
func (e *ChecksumError) Code() uint16 { return CodeChecksum }

// IncompleteFrameError: the read window closed mid-frame.
type IncompleteFrameError struct {
	Want int
	Got  int
}

func (e *IncompleteFrameError) Error() string {
	return fmt.Sprintf("frame: incomplete: got %d of %d bytes", e.Got, e.Want)
}
func (e *IncompleteFrameError) Code() uint16 { return CodeIncomplete }

// FrameTooLargeError: no terminator within the length guard.
type FrameTooLargeError struct {
	Max int
	Got int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame: no terminator within %d bytes (have %d)", e.Max, e.Got)
}
func (e *FrameTooLargeError) Code() uint16 { return CodeTooLarge }
