// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/gem-poller/internal/config"
	"github.com/tamzrod/gem-poller/internal/writer/ingest"
	wmodbus "github.com/tamzrod/gem-poller/internal/writer/modbus"
)

// BuildPlan converts one device config into a Writer Plan.
// Assumes config has already passed conflict validation.
func BuildPlan(d cfg.DeviceConfig) (Plan, error) {
	if d.ID == "" {
		return Plan{}, errors.New("writer: device.id required")
	}

	plan := Plan{DeviceID: d.ID}

	for _, t := range d.Targets {
		plan.Targets = append(plan.Targets, TargetEndpoint{
			TargetID:  t.ID,
			Endpoint:  t.Endpoint,
			Protocol:  protocol(t),
			UnitID:    t.UnitID,
			Registers: t.Registers,
		})

		if d.StatusSlot != nil && t.StatusUnitID != nil {
			plan.Status = append(plan.Status, StatusPlan{
				Endpoint:   t.Endpoint,
				Protocol:   protocol(t),
				UnitID:     *t.StatusUnitID,
				BaseSlot:   *d.StatusSlot,
				DeviceName: d.DeviceName,
			})
		}
	}

	return plan, nil
}

// BuildEndpointClients creates one client per unique protocol and endpoint.
func BuildEndpointClients(d cfg.DeviceConfig) (map[string]registerClient, func() error, error) {
	clients := make(map[string]registerClient)
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	for _, t := range d.Targets {
		key := ClientKey(protocol(t), t.Endpoint)
		if _, ok := clients[key]; ok {
			continue
		}
		timeout := time.Duration(t.TimeoutMs) * time.Millisecond

		switch protocol(t) {
		case cfg.ProtoIngest:
			c, err := ingest.NewEndpointClient(ingest.Config{Endpoint: t.Endpoint, Timeout: timeout})
			if err != nil {
				_ = closeAll()
				return nil, nil, err
			}
			clients[key] = c
			closers = append(closers, c.Close)

		default:
			c, err := wmodbus.NewEndpointClient(wmodbus.Config{Endpoint: t.Endpoint, Timeout: timeout})
			if err != nil {
				_ = closeAll()
				return nil, nil, err
			}
			clients[key] = c
			closers = append(closers, c.Close)
		}
	}

	return clients, closeAll, nil
}

func protocol(t cfg.TargetConfig) string {
	if t.Protocol == "" {
		return cfg.ProtoModbus
	}
	return t.Protocol
}
