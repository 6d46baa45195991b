// internal/status/tracker_test.go
package status

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tamzrod/gem-poller/internal/delta"
	"github.com/tamzrod/gem-poller/internal/frame"
	"github.com/tamzrod/gem-poller/internal/poller"
)

func ok(resets ...int) poller.PollResult {
	return poller.PollResult{DeviceID: "gem1", Tries: 1, Record: &delta.Record{Resets: resets}}
}

func failed(err error) poller.PollResult {
	return poller.PollResult{DeviceID: "gem1", Tries: 3, Err: &poller.PollError{Tries: 3, Err: err}}
}

func TestTracker_StartsUnknown(t *testing.T) {
	tr := NewTracker(0)
	assert.Equal(t, HealthUnknown, tr.Snapshot().Health)

	// no poll yet: nothing is in error
	s, changed := tr.Tick()
	assert.False(t, changed)
	assert.Zero(t, s.SecondsInError)

	s, _ = tr.Observe(failed(errors.New("x")))
	assert.Zero(t, s.SecondsInError)
	s, _ = tr.Tick()
	assert.Equal(t, uint16(1), s.SecondsInError)
}

func TestTracker_ErrorThenRecovery(t *testing.T) {
	tr := NewTracker(0)

	s, changed := tr.Observe(failed(&frame.ChecksumError{}))
	assert.True(t, changed)
	assert.Equal(t, HealthError, s.Health)
	assert.Equal(t, frame.CodeChecksum, s.LastErrorCode)
	assert.Equal(t, uint16(3), s.LastTries)

	tr.Tick()
	s, _ = tr.Tick()
	assert.Equal(t, uint16(2), s.SecondsInError)

	// same failure again: nothing new to write
	_, changed = tr.Observe(failed(&frame.ChecksumError{}))
	assert.False(t, changed)

	s, changed = tr.Observe(ok())
	assert.True(t, changed)
	assert.Equal(t, Snapshot{Health: HealthOK, LastTries: 1}, s)

	_, changed = tr.Tick()
	assert.False(t, changed)
}

func TestTracker_SecondsSaturate(t *testing.T) {
	tr := NewTracker(0)
	tr.Observe(failed(errors.New("x")))
	tr.snap.SecondsInError = 65535

	s, changed := tr.Tick()
	assert.False(t, changed)
	assert.Equal(t, uint16(65535), s.SecondsInError)
	assert.Equal(t, uint16(1), s.LastErrorCode)
}

func TestTracker_CountsResets(t *testing.T) {
	tr := NewTracker(0)
	tr.Observe(ok(1, 4))
	s, _ := tr.Observe(ok(2))
	assert.Equal(t, uint16(3), s.Resets)
}

func TestTracker_AgesIntoStale(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(15 * time.Second)
	tr.now = func() time.Time { return now }

	tr.Observe(ok())

	now = now.Add(10 * time.Second)
	s, _ := tr.Tick()
	assert.Equal(t, HealthOK, s.Health)

	now = now.Add(10 * time.Second)
	s, changed := tr.Tick()
	assert.True(t, changed)
	assert.Equal(t, HealthStale, s.Health)
	assert.Equal(t, uint16(1), s.SecondsInError)

	s, _ = tr.Observe(ok())
	assert.Equal(t, HealthOK, s.Health)
	assert.Zero(t, s.SecondsInError)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, uint16(0), ErrorCode(nil))
	assert.Equal(t, uint16(1), ErrorCode(errors.New("plain")))
	assert.Equal(t, frame.CodeIncomplete, ErrorCode(&frame.IncompleteFrameError{}))
}

func TestEncode(t *testing.T) {
	regs := Encode(Snapshot{Health: HealthError, LastErrorCode: 21, SecondsInError: 7, LastTries: 3, Resets: 2})

	assert.Len(t, regs, SlotsPerDevice)
	assert.Equal(t, []uint16{2, 21, 7, 3, 2}, regs[:SlotReservedStart])
	for i := SlotReservedStart; i < SlotsPerDevice; i++ {
		assert.Zero(t, regs[i])
	}
}

func TestEncodeName(t *testing.T) {
	regs := EncodeName("GEM\x01east-panel-number-9")

	assert.Len(t, regs, SlotDeviceNameSlots)
	assert.Equal(t, uint16('G')<<8|uint16('E'), regs[0])
	assert.Equal(t, uint16('M')<<8|uint16('?'), regs[1])
	// truncated at 16 chars: "GEM?east-panel-n"
	assert.Equal(t, uint16('-')<<8|uint16('n'), regs[7])
}
