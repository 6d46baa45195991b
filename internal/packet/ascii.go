// internal/packet/ascii.go
package packet

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tamzrod/gem-poller/internal/frame"
)

// asciiDecoder handles the key=value line encoding:
//
//	n=<serial>&m=<secs>&v=<volts>&cN=<aws>&pN=<pws>&aN=<amps>&vN=<volts>&tN=<degC>&pcN=<pulses>[&crc=XXXX]\r\n
type asciiDecoder struct {
	layout  Layout
	reverse bool
}

func (d *asciiDecoder) Decode(f []byte, capturedAt time.Time) (Snapshot, error) {
	l := d.layout
	body := frame.StripCRC(f)
	if len(body) == 0 {
		return Snapshot{}, &DecodeError{Reason: "empty ascii frame"}
	}

	var (
		snap      = Snapshot{CapturedAt: capturedAt}
		haveN     bool
		haveM     bool
		channels  = make([]ChannelReading, l.Channels)
		seenAbs   = make([]bool, l.Channels)
		pws       = make([]*uint64, l.Channels)
		pulses    = make([]*uint32, l.Pulses)
		temps     = make([]*float64, l.Temperatures)
		absFields int
	)

	for _, field := range bytes.Split(body, []byte("&")) {
		k, v, ok := strings.Cut(string(field), "=")
		if !ok {
			return Snapshot{}, decodeErrorf("malformed field %q", field)
		}

		switch k {
		case "n":
			if len(v) != 8 {
				return Snapshot{}, decodeErrorf("serial %q is not 8 digits", v)
			}
			unit, err1 := strconv.ParseUint(v[:3], 10, 8)
			ser, err2 := strconv.ParseUint(v[3:], 10, 16)
			if err1 != nil || err2 != nil {
				return Snapshot{}, decodeErrorf("serial %q is not numeric", v)
			}
			snap.UnitID = uint8(unit)
			snap.SerialNumber = uint16(ser)
			snap.Serial = v
			haveN = true
			continue
		case "m":
			secs, err := strconv.ParseUint(v, 10, 24)
			if err != nil {
				return Snapshot{}, decodeErrorf("secs %q: %v", v, err)
			}
			snap.Secs = uint32(secs)
			haveM = true
			continue
		case "v":
			k = "v1"
		}

		prefix, ch, err := splitKey(k)
		if err != nil {
			return Snapshot{}, err
		}

		switch prefix {
		case "t":
			x, err := parseFloat(k, v)
			if err != nil {
				return Snapshot{}, err
			}
			if ch < 1 || ch > l.Temperatures {
				return Snapshot{}, decodeErrorf("field %q outside %d temperature sensors", k, l.Temperatures)
			}
			if x >= -255 && x <= 255 {
				temps[ch-1] = &x
			}
			continue
		case "pc":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return Snapshot{}, decodeErrorf("field %q: %v", k, err)
			}
			if ch < 1 || ch > l.Pulses {
				return Snapshot{}, decodeErrorf("field %q outside %d pulse counters", k, l.Pulses)
			}
			p := uint32(n)
			pulses[ch-1] = &p
			continue
		}

		if ch < 1 || ch > l.Channels {
			return Snapshot{}, decodeErrorf("field %q outside %d configured channels", k, l.Channels)
		}
		r := &channels[ch-1]

		switch prefix {
		case "c":
			n, err := counter(ch, "absolute", v)
			if err != nil {
				return Snapshot{}, err
			}
			r.Absolute = n
			if !seenAbs[ch-1] {
				absFields++
			}
			seenAbs[ch-1] = true
		case "p":
			n, err := counter(ch, "polarized", v)
			if err != nil {
				return Snapshot{}, err
			}
			pws[ch-1] = &n
		case "a":
			x, err := parseFloat(k, v)
			if err != nil {
				return Snapshot{}, err
			}
			r.Amps = &x
		case "v":
			x, err := parseFloat(k, v)
			if err != nil {
				return Snapshot{}, err
			}
			r.Volts = &x
		default:
			return Snapshot{}, decodeErrorf("unknown field %q", k)
		}
	}

	if !haveN || !haveM {
		return Snapshot{}, &DecodeError{Reason: "ascii frame missing n= or m="}
	}
	if absFields != l.Channels {
		return Snapshot{}, decodeErrorf("frame carries %d channels, %d configured", absFields, l.Channels)
	}

	for i := range channels {
		if pws[i] == nil {
			continue
		}
		if *pws[i] > channels[i].Absolute {
			return Snapshot{}, &RangeError{Channel: i + 1, Field: "polarized", Value: strconv.FormatUint(*pws[i], 10)}
		}
		net := netWattSeconds(channels[i].Absolute, *pws[i], d.reverse)
		channels[i].Polarized = &net
	}

	snap.Channels = channels
	if l.Pulses > 0 {
		snap.Pulses = pulses
	}
	if l.Temperatures > 0 {
		snap.Temperatures = temps
	}
	return snap, nil
}

// splitKey separates "pc12" into ("pc", 12).
func splitKey(k string) (string, int, error) {
	i := strings.IndexFunc(k, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return "", 0, decodeErrorf("unknown field %q", k)
	}
	n, err := strconv.Atoi(k[i:])
	if err != nil {
		return "", 0, decodeErrorf("bad channel in field %q", k)
	}
	return k[:i], n, nil
}

// counter parses an accumulator and enforces the 5-byte ceiling.
func counter(ch int, field, v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, &RangeError{Channel: ch, Field: field, Value: v}
	}
	if err != nil {
		return 0, decodeErrorf("ch%d %s %q: not a counter", ch, field, v)
	}
	if n > MaxCounter {
		return 0, &RangeError{Channel: ch, Field: field, Value: v}
	}
	return n, nil
}

func parseFloat(k, v string) (float64, error) {
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, decodeErrorf("field %q: %v", k, err)
	}
	return x, nil
}
