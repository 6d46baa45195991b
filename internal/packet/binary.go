// internal/packet/binary.go
package packet

import (
	"strconv"
	"time"
)

// binaryDecoder handles BIN48-NET and BIN48-NET-TIME.
type binaryDecoder struct {
	layout  Layout
	reverse bool
}

func (d *binaryDecoder) Decode(f []byte, capturedAt time.Time) (Snapshot, error) {
	l := d.layout

	if len(f) != l.Length() {
		return Snapshot{}, decodeErrorf("frame is %d bytes, layout with %d slots expects %d", len(f), l.Slots, l.Length())
	}
	if f[2] != packetID {
		return Snapshot{}, decodeErrorf("packet id %d, expected %d", f[2], packetID)
	}

	volts := float64(be16(f[3:5])) / 10.0

	channels := make([]ChannelReading, l.Channels)
	for i := range channels {
		aws := le(f[l.absOff()+5*i:], 5)
		pws := le(f[l.polOff()+5*i:], 5)

		if aws > MaxCounter {
			return Snapshot{}, &RangeError{Channel: i + 1, Field: "absolute", Value: strconv.FormatUint(aws, 10)}
		}
		if pws > aws {
			return Snapshot{}, &RangeError{Channel: i + 1, Field: "polarized", Value: strconv.FormatUint(pws, 10)}
		}

		net := netWattSeconds(aws, pws, d.reverse)
		amps := float64(le(f[l.ampsOff()+2*i:], 2)) / 50.0

		channels[i] = ChannelReading{
			Absolute:  aws,
			Polarized: &net,
			Amps:      &amps,
		}
	}
	channels[0].Volts = &volts

	var pulses []*uint32
	for i := 0; i < l.Pulses; i++ {
		p := uint32(le(f[l.pulseOff()+3*i:], 3))
		pulses = append(pulses, &p)
	}

	var temps []*float64
	for i := 0; i < l.Temperatures; i++ {
		off := l.tempOff() + 2*i
		t, ok := temperature(f[off], f[off+1])
		if !ok {
			temps = append(temps, nil) // no sensor
			continue
		}
		temps = append(temps, &t)
	}

	serialNumber := be16(f[l.serialOff():])
	unitID := f[l.unitOff()]

	snap := Snapshot{
		CapturedAt:   capturedAt,
		Serial:       FormatSerial(unitID, serialNumber),
		SerialNumber: serialNumber,
		UnitID:       unitID,
		Secs:         uint32(le(f[l.secsOff():], 3)),
		Channels:     channels,
		Pulses:       pulses,
		Temperatures: temps,
	}

	if l.WithTime {
		b := f[l.timeOff() : l.timeOff()+6]
		ts := time.Date(2000+int(b[0]), time.Month(b[1]), int(b[2]), int(b[3]), int(b[4]), int(b[5]), 0, time.UTC)
		snap.DeviceTime = &ts
	}

	return snap, nil
}

// ---- helpers (pure byte math) ----

// le reads n little-endian bytes.
func le(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// temperature decodes half-degree sign-magnitude. Readings beyond +-255 mean no sensor.
func temperature(b0, b1 byte) (float64, bool) {
	t := 0.5 * float64(uint16(b1&0x7f)<<8|uint16(b0))
	if b1&0x80 != 0 {
		t = -t
	}
	if t > 255 || t < -255 {
		return 0, false
	}
	return t, true
}
