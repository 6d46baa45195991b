// internal/config/validate.go
package config

import (
	"errors"
	"fmt"

	"github.com/tamzrod/gem-poller/internal/logging"
	"github.com/tamzrod/gem-poller/internal/packet"
)

// EmitNames lists the observation groups accepted in delta.emit.
var EmitNames = []string{
	"a_energy", "p_energy",
	"ad_energy", "pd_energy",
	"a_power", "p_power",
	"volt", "amp", "temperature", "count",
}

var energyUnits = map[string]bool{
	"watt_second":   true,
	"watt_hour":     true,
	"kilowatt_hour": true,
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	if cfg.Logging.Level != "" {
		if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}
	if (cfg.HTTP.Metrics || cfg.HTTP.Live) && cfg.HTTP.Listen == "" {
		return errors.New("http: metrics or live enabled but listen is empty")
	}
	if cfg.Archive != nil && cfg.Archive.Path == "" {
		return errors.New("archive: path required")
	}

	if len(cfg.Devices) == 0 {
		return errors.New("at least one device required")
	}

	seen := make(map[string]bool)
	for _, d := range cfg.Devices {
		if d.ID == "" {
			return errors.New("device: id required")
		}
		if seen[d.ID] {
			return fmt.Errorf("device %q: duplicate id", d.ID)
		}
		seen[d.ID] = true

		if err := validateDevice(d); err != nil {
			return fmt.Errorf("device %q: %w", d.ID, err)
		}
	}

	if err := validateStatusSlots(cfg); err != nil {
		return err
	}
	return validateRegisterSpans(cfg)
}

func validateDevice(d DeviceConfig) error {
	pt := DefaultPacketType
	if d.PacketType != "" {
		t, err := packet.ParseType(d.PacketType)
		if err != nil {
			return err
		}
		pt = t
	}

	// ------------------------------------------------------------
	// CONNECTION
	// ------------------------------------------------------------

	c := d.Connection
	switch c.Type {
	case "", ConnSocket:
		if c.Host == "" {
			return errors.New("connection: host required")
		}
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("connection: port %d out of range", c.Port)
		}
	case ConnSerial:
		if c.SerialPort == "" {
			return errors.New("connection: serial_port required")
		}
		if c.BaudRate < 0 {
			return errors.New("connection: baud_rate must be >= 0")
		}
	default:
		return fmt.Errorf("connection: unknown type %q", c.Type)
	}
	if c.TimeoutMs < 0 || c.SendDelayMs < 0 {
		return errors.New("connection: timeouts must be >= 0")
	}

	if d.Poll.IntervalMs < 0 {
		return errors.New("poll: interval_ms must be >= 0")
	}
	if d.Poll.MaxTries < 0 {
		return errors.New("poll: max_tries must be >= 0")
	}

	// ------------------------------------------------------------
	// LAYOUT (zero means default)
	// ------------------------------------------------------------

	l := d.Layout
	if l.Channels < 0 || l.Slots < 0 || l.MaxFrame < 0 {
		return errors.New("layout: values must be >= 0")
	}
	if (l.Pulses != nil && *l.Pulses < 0) || (l.Temperatures != nil && *l.Temperatures < 0) {
		return errors.New("layout: pulses and temperatures must be >= 0")
	}
	channels := orDefault(l.Channels, DefaultChannels)
	if pt.Binary() {
		if channels > orDefault(l.Slots, DefaultSlots) {
			return fmt.Errorf("layout: %d channels exceed %d slots", channels, orDefault(l.Slots, DefaultSlots))
		}
		// the binary frame always carries the full pulse and temperature banks
		if l.Pulses != nil && *l.Pulses > packet.PulseSlots {
			return fmt.Errorf("layout: binary frames carry %d pulse counters, %d configured", packet.PulseSlots, *l.Pulses)
		}
		if l.Temperatures != nil && *l.Temperatures > packet.TemperatureSlots {
			return fmt.Errorf("layout: binary frames carry %d temperature sensors, %d configured", packet.TemperatureSlots, *l.Temperatures)
		}
	}

	// ------------------------------------------------------------
	// DELTA
	// ------------------------------------------------------------

	if d.Delta.StaleThresholdS < 0 {
		return errors.New("delta: stale_threshold_s must be >= 0")
	}
	if d.Delta.EnergyUnit != "" && !energyUnits[d.Delta.EnergyUnit] {
		return fmt.Errorf("delta: unknown energy_unit %q", d.Delta.EnergyUnit)
	}
	for _, e := range d.Delta.Emit {
		if !knownEmit(e) {
			return fmt.Errorf("delta: unknown emit %q", e)
		}
	}

	// device_name sanity (ASCII only)
	for i := 0; i < len(d.DeviceName); i++ {
		if d.DeviceName[i] > 0x7F {
			return errors.New("device_name must contain ASCII characters only")
		}
	}

	for _, t := range d.Targets {
		if t.Endpoint == "" {
			return fmt.Errorf("target %d: endpoint required", t.ID)
		}
		switch t.Protocol {
		case "", ProtoModbus, ProtoIngest:
		default:
			return fmt.Errorf("target %s: unknown protocol %q", t.Endpoint, t.Protocol)
		}
		if t.TimeoutMs < 0 {
			return fmt.Errorf("target %s: timeout_ms must be >= 0", t.Endpoint)
		}
	}
	return nil
}

func knownEmit(name string) bool {
	for _, n := range EmitNames {
		if n == name {
			return true
		}
	}
	return false
}

// ------------------------------------------------------------
// DEVICE STATUS BLOCK VALIDATION (PER-TARGET, OPT-IN)
// ------------------------------------------------------------

func validateStatusSlots(cfg *Config) error {
	// key = endpoint | status_unit_id | status_slot
	statusOwner := make(map[string]string)

	for _, d := range cfg.Devices {
		if d.StatusSlot == nil {
			continue
		}

		if len(d.Targets) == 0 {
			return fmt.Errorf("device %q: status_slot is set but no targets are defined", d.ID)
		}

		slot := *d.StatusSlot
		for _, t := range d.Targets {
			if t.StatusUnitID == nil {
				return fmt.Errorf(
					"device %q: status_slot is set but target %q has no status_unit_id",
					d.ID,
					t.Endpoint,
				)
			}

			key := fmt.Sprintf("%s|%d|%d", t.Endpoint, *t.StatusUnitID, slot)
			if prev, exists := statusOwner[key]; exists {
				return fmt.Errorf(
					"status_slot collision: endpoint=%s status_unit_id=%d slot=%d used by devices %q and %q",
					t.Endpoint,
					*t.StatusUnitID,
					slot,
					prev,
					d.ID,
				)
			}
			statusOwner[key] = d.ID
		}
	}
	return nil
}

// ------------------------------------------------------------
// DESTINATION REGISTER GEOMETRY VALIDATION
// ------------------------------------------------------------

func validateRegisterSpans(cfg *Config) error {
	type span struct {
		start  uint16
		end    uint16
		device string
		name   string
	}

	// key = endpoint | unit_id
	spans := make(map[string][]span)

	for _, d := range cfg.Devices {
		for _, t := range d.Targets {
			key := fmt.Sprintf("%s|%d", t.Endpoint, t.UnitID)

			for name, addr := range t.Registers {
				if addr == 0xFFFF {
					return fmt.Errorf("device %q: register %s=%d leaves no room for float32", d.ID, name, addr)
				}
				start, end := addr, addr+1

				for _, s := range spans[key] {
					// overlap check (inclusive)
					if !(end < s.start || start > s.end) {
						return fmt.Errorf(
							"register overlap: endpoint=%s unit_id=%d %s@%d (device %s) overlaps %s@%d (device %s)",
							t.Endpoint,
							t.UnitID,
							name,
							start,
							d.ID,
							s.name,
							s.start,
							s.device,
						)
					}
				}

				spans[key] = append(spans[key], span{start: start, end: end, device: d.ID, name: name})
			}
		}
	}

	return nil
}
