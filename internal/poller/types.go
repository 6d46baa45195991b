// internal/poller/types.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/gem-poller/internal/delta"
	"github.com/tamzrod/gem-poller/internal/frame"
	"github.com/tamzrod/gem-poller/internal/packet"
)

// State is one step of a poll cycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateAwaitingResponse
	StateDecoding
	StateDone
	StateRetrying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateDecoding:
		return "decoding"
	case StateDone:
		return "done"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PollResult is what one poll cycle produced.
// Exactly one of Record and Err is set.
type PollResult struct {
	DeviceID string
	At       time.Time
	Tries    int

	Record *delta.Record
	Err    error // *PollError when tries were exhausted
}

// ---- error classes ----

// Kind groups errors by how the cycle recovers from them.
type Kind int

const (
	KindTransport Kind = iota // reconnect, then retry
	KindFraming               // retry on the same connection
	KindContent               // retry, fatal once tries run out
	KindCanceled              // context done; stop
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindContent:
		return "content"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Classify maps an error from any stage to its recovery class.
// Anything unrecognised (transport errors, CommandError) means reconnect.
func Classify(err error) Kind {
	var (
		ce *frame.ChecksumError
		ie *frame.IncompleteFrameError
		fe *frame.FrameTooLargeError
		re *packet.RangeError
		de *packet.DecodeError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &ce), errors.As(err, &ie), errors.As(err, &fe):
		return KindFraming
	case errors.As(err, &re), errors.As(err, &de):
		return KindContent
	}
	return KindTransport
}

// Error codes for failures that carry none of their own.
const (
	CodeGeneric  uint16 = 1
	CodeCommand  uint16 = 40
	CodeCanceled uint16 = 41
)

// PollError is the single fatal outcome of a cycle whose tries ran out.
type PollError struct {
	DeviceID string
	Tries    int
	Kind     Kind
	Err      error // last underlying error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poller: device %s: poll failed after %d tries (%s): %v", e.DeviceID, e.Tries, e.Kind, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Fatal reports a configuration or hardware mismatch that retrying will not fix.
func (e *PollError) Fatal() bool { return e.Kind == KindContent }

// Code passes through the underlying error's code.
func (e *PollError) Code() uint16 {
	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(e.Err, &c) {
		return c.Code()
	}
	if e.Kind == KindCanceled {
		return CodeCanceled
	}
	return CodeGeneric
}

// CommandError: a setup command never got its expected reply.
type CommandError struct {
	Command string
	Want    string
	Got     string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("poller: command %q: got %q, want %q", e.Command, e.Got, e.Want)
}
func (e *CommandError) Code() uint16 { return CodeCommand }

