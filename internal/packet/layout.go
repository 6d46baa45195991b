// internal/packet/layout.go
package packet

import "errors"

// Bank sizes of the GEM BIN48 family. The binary frame always carries
// PulseSlots counters and TemperatureSlots sensors.
const (
	DefaultSlots     = 48
	DefaultChannels  = 32
	PulseSlots       = 4
	TemperatureSlots = 8
)

// Layout is the frame geometry. Binary frame length is a pure function of it.
//
//	0        FE FF
//	2        packet id
//	3        volts x10 (BE u16)
//	5        absolute Ws        Slots x 5 (LE)
//	5+5S     polarized Ws       Slots x 5 (LE)
//	5+10S    serial (BE u16), reserved, unit id
//	9+10S    amps x50           Slots x 2 (LE)
//	9+12S    seconds counter    3 (LE)
//	+3       pulse counters     PulseSlots x 3 (LE)
//	...      temperatures       TemperatureSlots x 2
//	...      Y M D h m s        time variant only
//	...      FE FF, checksum
type Layout struct {
	Slots        int // channel slots physically present in the frame
	Channels     int // current channels decoded (<= Slots)
	Pulses       int // pulse counters decoded, 0 disables the bank
	Temperatures int // temperature sensors decoded, 0 disables the bank

	// Banks physically present in a binary frame. Ignored for ASCII.
	PulseSlots       int
	TemperatureSlots int

	WithTime bool
}

// DefaultLayout is BIN48-NET with 32 usable channels and every bank decoded.
func DefaultLayout() Layout {
	return Layout{
		Slots:            DefaultSlots,
		Channels:         DefaultChannels,
		Pulses:           PulseSlots,
		Temperatures:     TemperatureSlots,
		PulseSlots:       PulseSlots,
		TemperatureSlots: TemperatureSlots,
	}
}

// BinaryLayout is the BIN48 frame geometry decoding the first channels,
// pulses and temperatures of each bank.
func BinaryLayout(channels, pulses, temperatures int, withTime bool) Layout {
	l := DefaultLayout()
	l.Channels = channels
	l.Pulses = pulses
	l.Temperatures = temperatures
	l.WithTime = withTime
	return l
}

const packetID byte = 5

func (l Layout) absOff() int    { return 5 }
func (l Layout) polOff() int    { return 5 + 5*l.Slots }
func (l Layout) serialOff() int { return 5 + 10*l.Slots }
func (l Layout) unitOff() int   { return l.serialOff() + 3 }
func (l Layout) ampsOff() int   { return 9 + 10*l.Slots }
func (l Layout) secsOff() int   { return 9 + 12*l.Slots }
func (l Layout) pulseOff() int  { return l.secsOff() + 3 }
func (l Layout) tempOff() int   { return l.pulseOff() + 3*l.PulseSlots }
func (l Layout) timeOff() int   { return l.tempOff() + 2*l.TemperatureSlots }

// Length is the binary frame size in bytes, checksum included.
func (l Layout) Length() int {
	n := l.timeOff() + 3
	if l.WithTime {
		n += 6
	}
	return n
}

func (l Layout) check() error {
	switch {
	case l.Channels <= 0:
		return &DecodeError{Reason: "layout: channels must be > 0"}
	case l.Slots > 0 && l.Channels > l.Slots:
		return decodeErrorf("layout: %d channels configured but frame carries %d slots", l.Channels, l.Slots)
	case l.Pulses < 0 || l.Temperatures < 0:
		return errors.New("packet: layout: negative bank size")
	}
	return nil
}

// checkBinary also bounds the decoded banks by what the frame carries.
func (l Layout) checkBinary() error {
	switch {
	case l.Slots <= 0:
		return &DecodeError{Reason: "layout: binary frames need slots > 0"}
	case l.Pulses > l.PulseSlots:
		return decodeErrorf("layout: %d pulse counters configured but frame carries %d", l.Pulses, l.PulseSlots)
	case l.Temperatures > l.TemperatureSlots:
		return decodeErrorf("layout: %d temperature sensors configured but frame carries %d", l.Temperatures, l.TemperatureSlots)
	}
	return nil
}
