// internal/status/tracker.go
package status

import (
	"errors"
	"sync"
	"time"

	"github.com/tamzrod/gem-poller/internal/poller"
)

// Tracker owns one device's status snapshot.
// Observe is fed every poll result; Tick is driven at 1 Hz.
// Both report whether the snapshot changed, so callers write only on change.
type Tracker struct {
	mu sync.Mutex

	snap       Snapshot
	staleAfter time.Duration
	lastOK     time.Time
	now        func() time.Time
}

// NewTracker starts in HealthUnknown. A device that was OK but has had no
// good poll for staleAfter turns HealthStale; staleAfter <= 0 disables that.
func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{
		snap:       Snapshot{Health: HealthUnknown},
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Observe folds one poll result into the snapshot.
func (t *Tracker) Observe(res poller.PollResult) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap
	t.snap.LastTries = sat16(res.Tries)

	if res.Err == nil {
		// Recovery / OK
		t.lastOK = t.now()
		t.snap.Health = HealthOK
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
		if res.Record != nil && len(res.Record.Resets) > 0 {
			t.snap.Resets = sat16(int(t.snap.Resets) + len(res.Record.Resets))
		}
	} else {
		t.snap.Health = HealthError
		t.snap.LastErrorCode = ErrorCode(res.Err)
		// seconds_in_error increments on Tick only
	}

	return t.snap, t.snap != prev
}

// Tick advances seconds_in_error while in Error or Stale and ages OK into Stale.
func (t *Tracker) Tick() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap

	if t.snap.Health == HealthOK && t.staleAfter > 0 && t.now().Sub(t.lastOK) > t.staleAfter {
		t.snap.Health = HealthStale
	}
	// a device never polled yet is not in error
	inError := t.snap.Health == HealthError || t.snap.Health == HealthStale
	if inError && t.snap.SecondsInError < 65535 {
		t.snap.SecondsInError++
	}

	return t.snap, t.snap != prev
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 1
}

func sat16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 65535:
		return 65535
	}
	return uint16(v)
}
