// internal/config/normalize.go
package config

import "github.com/tamzrod/gem-poller/internal/packet"

// Defaults applied by Normalize.
const (
	DefaultPort        = 8083
	DefaultBaudRate    = 19200
	DefaultTimeoutMs   = 20000
	DefaultSendDelayMs = 200
	DefaultIntervalMs  = 5000
	DefaultMaxTries    = 3

	DefaultTargetTimeoutMs = 2000

	DefaultChannels     = 32
	DefaultSlots        = 48
	DefaultPulses       = packet.PulseSlots
	DefaultTemperatures = packet.TemperatureSlots

	DefaultStaleThresholdS = 1800
	DefaultEnergyUnit      = "watt_second"
	DefaultLogLevel        = "info"
)

// DefaultPacketType is used when packet_type is omitted.
const DefaultPacketType = packet.BinaryWithTime

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}

	for di := range cfg.Devices {
		d := &cfg.Devices[di]

		if d.PacketType == "" {
			d.PacketType = string(DefaultPacketType)
		}
		// canonical name for legacy aliases
		if t, err := packet.ParseType(d.PacketType); err == nil {
			d.PacketType = string(t)
		}

		// ---- connection ----
		c := &d.Connection
		if c.Type == "" {
			c.Type = ConnSocket
		}
		if c.Type == ConnSocket && c.Port == 0 {
			c.Port = DefaultPort
		}
		if c.Type == ConnSerial && c.BaudRate == 0 {
			c.BaudRate = DefaultBaudRate
		}
		if c.TimeoutMs == 0 {
			c.TimeoutMs = DefaultTimeoutMs
		}
		if c.SendDelayMs == 0 {
			c.SendDelayMs = DefaultSendDelayMs
		}

		// ---- poll ----
		if d.Poll.IntervalMs == 0 {
			d.Poll.IntervalMs = DefaultIntervalMs
		}
		if d.Poll.MaxTries == 0 {
			d.Poll.MaxTries = DefaultMaxTries
		}

		// ---- layout ----
		l := &d.Layout
		l.Channels = orDefault(l.Channels, DefaultChannels)
		l.Slots = orDefault(l.Slots, DefaultSlots)
		if l.Pulses == nil {
			l.Pulses = intPtr(DefaultPulses)
		}
		if l.Temperatures == nil {
			l.Temperatures = intPtr(DefaultTemperatures)
		}

		// ---- delta ----
		if d.Delta.StaleThresholdS == 0 {
			d.Delta.StaleThresholdS = DefaultStaleThresholdS
		}
		if d.Delta.EnergyUnit == "" {
			d.Delta.EnergyUnit = DefaultEnergyUnit
		}
		if len(d.Delta.Emit) == 0 {
			d.Delta.Emit = append([]string(nil), EmitNames...)
		}

		// ---- targets ----
		for ti := range d.Targets {
			t := &d.Targets[ti]
			if t.Protocol == "" {
				t.Protocol = ProtoModbus
			}
			if t.TimeoutMs == 0 {
				t.TimeoutMs = DefaultTargetTimeoutMs
			}
		}

		// ---- device status block (opt-in) ----
		if d.StatusSlot != nil && len(d.DeviceName) > 16 {
			d.DeviceName = d.DeviceName[:16]
		}
	}
}

func orDefault(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

func intPtr(v int) *int { return &v }
