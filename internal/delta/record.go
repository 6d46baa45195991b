// internal/delta/record.go
package delta

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one derived observation set, produced once per successful poll.
// Treat as immutable after Process returns it.
type Record struct {
	ID         uuid.UUID
	DeviceID   string
	DateTime   time.Time
	Serial     string
	UnitID     uint8
	Secs       uint32
	DeviceTime *time.Time

	// Values maps observation names (ch3_a_energy2, ch3_a_power, ...) to values.
	Values map[string]float64

	Resets []int // channels whose counter decreased this poll
	Stale  []int // channels whose interval exceeded the stale threshold
}

// EnergyUnit is the unit energy observations are reported in.
type EnergyUnit string

const (
	WattSecond   EnergyUnit = "watt_second"
	WattHour     EnergyUnit = "watt_hour"
	KilowattHour EnergyUnit = "kilowatt_hour"
)

func (u EnergyUnit) factor() (float64, error) {
	switch u {
	case WattSecond:
		return 1, nil
	case WattHour:
		return 1.0 / 3600, nil
	case KilowattHour:
		return 1.0 / 3600000, nil
	}
	return 0, fmt.Errorf("delta: unknown energy unit %q", u)
}

// Emit selects which observations are written into a record.
type Emit struct {
	AbsEnergy bool // chN_a_energy2
	PolEnergy bool // chN_p_energy2
	AbsDelta  bool // chN_ad_energy2
	PolDelta  bool // chN_pd_energy2
	AbsPower  bool // chN_a_power
	PolPower  bool // chN_p_power

	Volts       bool
	Amps        bool
	Temperature bool
	Pulses      bool
}

// EmitAll enables every observation.
func EmitAll() Emit {
	return Emit{
		AbsEnergy: true, PolEnergy: true,
		AbsDelta: true, PolDelta: true,
		AbsPower: true, PolPower: true,
		Volts: true, Amps: true, Temperature: true, Pulses: true,
	}
}
