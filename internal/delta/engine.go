// internal/delta/engine.go
package delta

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/gem-poller/internal/logging"
	"github.com/tamzrod/gem-poller/internal/packet"
)

// DefaultStaleThreshold is the longest gap over which a delta is still meaningful.
const DefaultStaleThreshold = 1800 * time.Second

// Config is the per-device engine config.
type Config struct {
	DeviceID       string
	MaxChannels    int
	StaleThreshold time.Duration // <= 0 disables the staleness check
	Unit           EnergyUnit
	Emit           Emit
}

// ChannelState is the last valid reading of one channel.
type ChannelState struct {
	Reading packet.ChannelReading
	At      time.Time
}

type slot struct {
	ChannelState
	valid bool
}

// Engine turns snapshots into records and owns all per-channel memory.
// Not safe for concurrent use: one engine per device, one poll at a time.
type Engine struct {
	cfg   Config
	state []slot
	log   logging.Logger
}

// New allocates state for cfg.MaxChannels channels. The size never changes.
func New(cfg Config, log logging.Logger) (*Engine, error) {
	if cfg.MaxChannels <= 0 {
		return nil, errors.New("delta: max channels must be > 0")
	}
	if cfg.Unit == "" {
		cfg.Unit = WattSecond
	}
	if _, err := cfg.Unit.factor(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		cfg:   cfg,
		state: make([]slot, cfg.MaxChannels),
		log:   log,
	}, nil
}

// State returns a copy of one channel's state (1-based).
func (e *Engine) State(ch int) (ChannelState, bool) {
	if ch < 1 || ch > len(e.state) {
		return ChannelState{}, false
	}
	s := e.state[ch-1]
	return s.ChannelState, s.valid
}

// Process derives one record from s and advances channel state.
func (e *Engine) Process(s packet.Snapshot) Record {
	f, _ := e.cfg.Unit.factor()
	em := e.cfg.Emit

	rec := Record{
		ID:         uuid.New(),
		DeviceID:   e.cfg.DeviceID,
		DateTime:   s.CapturedAt,
		Serial:     s.Serial,
		UnitID:     s.UnitID,
		Secs:       s.Secs,
		DeviceTime: s.DeviceTime,
		Values:     make(map[string]float64),
	}

	n := len(s.Channels)
	if n > len(e.state) {
		e.log.Debug("snapshot carries %d channels, tracking first %d", n, len(e.state))
		n = len(e.state)
	}

	for i := 0; i < n; i++ {
		ch := i + 1
		cur := s.Channels[i]
		put := func(suffix string, v float64) {
			rec.Values[name(ch, suffix)] = v
		}

		// accumulated: always, independent of delta bookkeeping
		if em.AbsEnergy {
			put("a_energy2", float64(cur.Absolute)*f)
		}
		if em.PolEnergy && cur.Polarized != nil {
			put("p_energy2", float64(*cur.Polarized)*f)
		}

		// instantaneous
		if em.Volts && cur.Volts != nil {
			put("volt", *cur.Volts)
		}
		if em.Amps && cur.Amps != nil {
			put("amp", *cur.Amps)
		}

		prev := e.state[i]
		if prev.valid {
			elapsed := s.CapturedAt.Sub(prev.At)

			switch {
			case e.cfg.StaleThreshold > 0 && elapsed > e.cfg.StaleThreshold:
				rec.Stale = append(rec.Stale, ch)

			case elapsed <= 0:
				e.log.Warning("ch%d: capture time did not advance (%s), skipping interval", ch, elapsed)

			case cur.Absolute < prev.Reading.Absolute:
				// device reset: the interval cannot be reconstructed
				rec.Resets = append(rec.Resets, ch)
				e.log.Warning("device %s ch%d: counter reset %d -> %d, rebasing",
					e.cfg.DeviceID, ch, prev.Reading.Absolute, cur.Absolute)
				if em.AbsDelta {
					put("ad_energy2", 0)
				}
				if em.PolDelta && cur.Polarized != nil {
					put("pd_energy2", 0)
				}

			default:
				secs := elapsed.Seconds()
				da := float64(cur.Absolute - prev.Reading.Absolute)
				if em.AbsDelta {
					put("ad_energy2", da*f)
				}
				if em.AbsPower {
					put("a_power", da/secs)
				}

				if cur.Polarized != nil && prev.Reading.Polarized != nil {
					dp := float64(*cur.Polarized - *prev.Reading.Polarized)
					if em.PolDelta {
						put("pd_energy2", dp*f)
					}
					if em.PolPower {
						put("p_power", dp/secs)
					}
				}
			}
		}

		e.state[i] = slot{
			ChannelState: ChannelState{Reading: cur, At: s.CapturedAt},
			valid:        true,
		}
	}

	// auxiliary banks carry no delta state
	if em.Temperature {
		for i, t := range s.Temperatures {
			if t != nil {
				rec.Values[name(i+1, "temperature")] = *t
			}
		}
	}
	if em.Pulses {
		for i, p := range s.Pulses {
			if p != nil {
				rec.Values[name(i+1, "count")] = float64(*p)
			}
		}
	}

	if len(rec.Stale) > 0 {
		e.log.Info("device %s: %d channel(s) stale, deltas suppressed", e.cfg.DeviceID, len(rec.Stale))
	}

	return rec
}

// name builds an observation name, e.g. ch3_a_power.
func name(ch int, suffix string) string {
	return "ch" + strconv.Itoa(ch) + "_" + suffix
}
