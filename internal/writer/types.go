// internal/writer/types.go
package writer

import "github.com/tamzrod/gem-poller/internal/poller"

// Writer delivers poll results to one sink.
type Writer interface {
	Write(res poller.PollResult) error
}

// registerClient is the exact contract register targets use.
// Modbus and Raw Ingest endpoints both satisfy it.
type registerClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// TargetEndpoint is one register target and its observation map.
type TargetEndpoint struct {
	TargetID  uint32
	Endpoint  string
	Protocol  string
	UnitID    uint8
	Registers map[string]uint16 // observation name -> first register
}

// StatusPlan places one device's status block inside a target.
type StatusPlan struct {
	Endpoint   string
	Protocol   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// Plan is the fully-built write plan for one device.
type Plan struct {
	DeviceID string
	Targets  []TargetEndpoint
	Status   []StatusPlan // empty: status disabled
}
