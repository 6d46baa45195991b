// internal/packet/errors.go
package packet

import "fmt"

// Error codes surfaced through status blocks.
const (
	CodeRange  uint16 = 30
	CodeDecode uint16 = 31
)

// RangeError: a decoded value cannot be a real counter reading.
type RangeError struct {
	Channel int
	Field   string
	Value   string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("packet: ch%d %s out of range: %s", e.Channel, e.Field, e.Value)
}
func (e *RangeError) Code() uint16 { return CodeRange }

// DecodeError: frame and configuration disagree (length, id, channel count, syntax).
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "packet: " + e.Reason }
func (e *DecodeError) Code() uint16  { return CodeDecode }

func decodeErrorf(format string, a ...interface{}) error {
	return &DecodeError{Reason: fmt.Sprintf(format, a...)}
}
