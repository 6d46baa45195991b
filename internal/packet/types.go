// internal/packet/types.go
package packet

import (
	"fmt"
	"time"
)

// MaxCounter is the largest value a 5-byte accumulator can hold (2^40 - 1).
const MaxCounter uint64 = 1<<40 - 1

// ChannelReading is one current channel of one packet, in raw device units.
// Optional fields are nil when the encoding does not carry them.
type ChannelReading struct {
	Absolute  uint64   // accumulated watt-seconds, direction-blind
	Polarized *int64   // accumulated net watt-seconds, signed
	Volts     *float64 // instantaneous
	Amps      *float64 // instantaneous
}

// Snapshot is one decoded packet.
type Snapshot struct {
	CapturedAt   time.Time
	Serial       string // %03d%05d of unit id and serial number
	SerialNumber uint16
	UnitID       uint8
	Secs         uint32     // device uptime counter
	DeviceTime   *time.Time // BinaryWithTime only, UTC
	Channels     []ChannelReading

	// Auxiliary banks, independent of Channels. Entry i is counter or
	// sensor i+1; nil when the frame did not carry a reading for it.
	Pulses       []*uint32
	Temperatures []*float64 // degrees C
}

// FormatSerial builds the printed serial the way the device labels itself.
func FormatSerial(unitID uint8, serialNumber uint16) string {
	return fmt.Sprintf("%03d%05d", unitID, serialNumber)
}
