// internal/poller/device.go
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/tamzrod/gem-poller/internal/frame"
	"github.com/tamzrod/gem-poller/internal/packet"
)

// Command is one write-with-response exchange.
type Command struct {
	Send   string
	Expect string
}

// replyMax bounds a command reply line.
const replyMax = 64

// SetupCommands returns the sequence that puts a GEM into polled mode
// emitting packets of type t.
//
//	^^^SYSOFF   real-time output off
//	^^^SYSKAI0  keep-alive off
//	^^^TMPDGC   temperatures in Celsius
//	^^^SYSPKTnn packet format
func SetupCommands(t packet.Type) []Command {
	return []Command{
		{Send: "^^^SYSOFF", Expect: "OFF\r\n"},
		{Send: "^^^SYSKAI0", Expect: "OK\r\n"},
		{Send: "^^^TMPDGC", Expect: "OK\r\n"},
		{Send: fmt.Sprintf("^^^SYSPKT%02d", t.Format()), Expect: "PKT\r\n"},
	}
}

// clockLead covers the send delay and the device's own latency.
const clockLead = 750 * time.Millisecond

// SetTime returns the clock command for host time now, in UTC.
func SetTime(now time.Time) Command {
	t := now.UTC().Add(clockLead)
	return Command{
		Send: fmt.Sprintf("^^^SYSDTM%02d,%02d,%02d,%02d,%02d,%02d\r",
			t.Year()%100, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()),
		Expect: "DTM\r\n",
	}
}

// exchange sends cmd and reads one reply line. ONE attempt per call:
// a wrong or garbled reply fails the current try and the cycle's retry
// budget decides what happens next. Transport errors pass through.
func (p *Poller) exchange(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.tr.Flush(); err != nil {
		return err
	}
	if err := p.tr.Send([]byte(cmd.Send)); err != nil {
		return err
	}

	reply, err := frame.NewASCII("\r\n", replyMax).ReadFrame(p.tr, p.cfg.Timeout)
	if err != nil {
		if Classify(err) != KindFraming {
			return err
		}
		return &CommandError{Command: cmd.Send, Want: cmd.Expect, Got: err.Error()}
	}

	got := string(reply)
	if got != cmd.Expect {
		return &CommandError{Command: cmd.Send, Want: cmd.Expect, Got: got}
	}
	p.p.Log.Debug("device %s: %q -> %q", p.cfg.DeviceID, cmd.Send, got)
	return nil
}
