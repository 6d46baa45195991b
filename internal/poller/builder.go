// internal/poller/builder.go
package poller

import (
	"context"
	"time"

	cfg "github.com/tamzrod/gem-poller/internal/config"
	"github.com/tamzrod/gem-poller/internal/delta"
	"github.com/tamzrod/gem-poller/internal/frame"
	"github.com/tamzrod/gem-poller/internal/logging"
	"github.com/tamzrod/gem-poller/internal/packet"
	"github.com/tamzrod/gem-poller/internal/transport"
)

// Build constructs a Poller and wires transport lifecycle for one device.
// The connection is opened lazily on the first poll and reused while healthy.
// On transport death, Poller discards it and uses the dialer on the next try.
func Build(d cfg.DeviceConfig, log logging.Logger) (*Poller, func() error, error) {
	pt, err := packet.ParseType(d.PacketType)
	if err != nil {
		return nil, nil, err
	}

	pulses := bank(d.Layout.Pulses, packet.PulseSlots)
	temps := bank(d.Layout.Temperatures, packet.TemperatureSlots)

	var (
		layout packet.Layout
		reader frame.Reader
	)
	if pt.Binary() {
		// frame geometry is fixed; only the decoded counts vary
		layout = packet.BinaryLayout(d.Layout.Channels, pulses, temps, pt == packet.BinaryWithTime)
		if d.Layout.Slots > 0 {
			layout.Slots = d.Layout.Slots
		}
		reader = frame.NewBinary(layout.Length())
	} else {
		layout = packet.Layout{Channels: d.Layout.Channels, Pulses: pulses, Temperatures: temps}
		reader = frame.NewASCII("\r\n", d.Layout.MaxFrame)
	}

	dec, err := packet.New(pt, layout, d.Delta.ReversePolarity)
	if err != nil {
		return nil, nil, err
	}

	engine, err := delta.New(delta.Config{
		DeviceID:       d.ID,
		MaxChannels:    d.Layout.Channels,
		StaleThreshold: time.Duration(d.Delta.StaleThresholdS) * time.Second,
		Unit:           delta.EnergyUnit(d.Delta.EnergyUnit),
		Emit:           EmitFlags(d.Delta.Emit),
	}, log)
	if err != nil {
		return nil, nil, err
	}

	var setup []Command
	if d.Setup.Enabled {
		setup = SetupCommands(pt)
	}

	p, err := New(
		Config{
			DeviceID: d.ID,
			Interval: time.Duration(d.Poll.IntervalMs) * time.Millisecond,
			Timeout:  time.Duration(d.Connection.TimeoutMs) * time.Millisecond,
			MaxTries: d.Poll.MaxTries,
			Setup:    setup,
			SetClock: d.Setup.SetClock,
		},
		Parts{
			Dial:    Dial(d.Connection),
			Reader:  reader,
			Decoder: dec,
			Engine:  engine,
			Log:     log,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	return p, p.Close, nil
}

// Dial returns the transport factory for a connection config.
func Dial(c cfg.ConnectionConfig) Dialer {
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	sendDelay := time.Duration(c.SendDelayMs) * time.Millisecond

	if c.Type == cfg.ConnSerial {
		return func(ctx context.Context) (transport.Transport, error) {
			s, err := transport.OpenSerial(transport.SerialConfig{
				Port:      c.SerialPort,
				BaudRate:  c.BaudRate,
				SendDelay: sendDelay,
				Timeout:   timeout,
			})
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}

	return func(ctx context.Context) (transport.Transport, error) {
		t, err := transport.Dial(ctx, transport.Config{
			Host:      c.Host,
			Port:      c.Port,
			Timeout:   timeout,
			SendDelay: sendDelay,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// bank resolves a configured bank count; unset means the whole bank.
func bank(n *int, all int) int {
	if n == nil {
		return all
	}
	return *n
}

// EmitFlags converts configured emit names into engine flags.
// An empty list enables everything.
func EmitFlags(names []string) delta.Emit {
	if len(names) == 0 {
		return delta.EmitAll()
	}
	var e delta.Emit
	for _, n := range names {
		switch n {
		case "a_energy":
			e.AbsEnergy = true
		case "p_energy":
			e.PolEnergy = true
		case "ad_energy":
			e.AbsDelta = true
		case "pd_energy":
			e.PolDelta = true
		case "a_power":
			e.AbsPower = true
		case "p_power":
			e.PolPower = true
		case "volt":
			e.Volts = true
		case "amp":
			e.Amps = true
		case "temperature":
			e.Temperature = true
		case "count":
			e.Pulses = true
		}
	}
	return e
}
