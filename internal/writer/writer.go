// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tamzrod/gem-poller/internal/poller"
)

// maxBlockRegs keeps one write under the FC16 limit of 123 registers.
const maxBlockRegs = 122

type registerWriter struct {
	plan    Plan
	clients map[string]registerClient
}

// New returns the register writer for one device plan.
// Observations missing from a record leave their registers untouched.
func New(plan Plan, clients map[string]registerClient) Writer {
	return &registerWriter{
		plan:    plan,
		clients: clients,
	}
}

func (w *registerWriter) Write(res poller.PollResult) error {
	// failures are reported through the status block only
	if res.Err != nil || res.Record == nil {
		return nil
	}

	var errs []string

	for _, tgt := range w.plan.Targets {
		cli := w.clients[ClientKey(tgt.Protocol, tgt.Endpoint)]
		if cli == nil {
			errs = append(errs, fmt.Sprintf(
				"writer: missing client for endpoint %s",
				tgt.Endpoint,
			))
			continue
		}

		for _, b := range blocks(tgt.Registers, res.Record.Values) {
			if err := cli.WriteRegisters(tgt.UnitID, b.addr, b.regs); err != nil {
				errs = append(errs, fmt.Sprintf(
					"writer: ep=%s unit=%d addr=%d qty=%d err=%v",
					tgt.Endpoint, tgt.UnitID, b.addr, len(b.regs), err,
				))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}

// ---- register packing ----

type block struct {
	addr uint16
	regs []uint16
}

// blocks packs mapped values into runs of adjacent registers.
func blocks(layout map[string]uint16, values map[string]float64) []block {
	type item struct {
		addr uint16
		v    float64
	}

	items := make([]item, 0, len(layout))
	for name, addr := range layout {
		if v, ok := values[name]; ok {
			items = append(items, item{addr: addr, v: v})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].addr < items[j].addr })

	var out []block
	for _, it := range items {
		w := Float32Regs(float32(it.v))
		if n := len(out); n > 0 {
			last := &out[n-1]
			if int(last.addr)+len(last.regs) == int(it.addr) && len(last.regs)+2 <= maxBlockRegs {
				last.regs = append(last.regs, w[0], w[1])
				continue
			}
		}
		out = append(out, block{addr: it.addr, regs: []uint16{w[0], w[1]}})
	}
	return out
}

// Float32Regs encodes v as IEEE-754 float32, high word first.
func Float32Regs(v float32) [2]uint16 {
	b := math.Float32bits(v)
	return [2]uint16{uint16(b >> 16), uint16(b)}
}

// ClientKey identifies one client per protocol and endpoint.
func ClientKey(protocol, endpoint string) string {
	return protocol + "://" + endpoint
}

// ---- fan-out ----

// Fanout delivers each result to every writer and joins their errors.
// One failing sink never blocks the others.
type Fanout []Writer

func (f Fanout) Write(res poller.PollResult) error {
	var errs []string
	for _, w := range f {
		if err := w.Write(res); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}
