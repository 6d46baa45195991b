// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/gem-poller/internal/delta"
	"github.com/tamzrod/gem-poller/internal/frame"
	"github.com/tamzrod/gem-poller/internal/logging"
	"github.com/tamzrod/gem-poller/internal/packet"
	"github.com/tamzrod/gem-poller/internal/transport"
)

// PollCommand asks the device for one packet.
const PollCommand = "^^^APISPK"

// DefaultMaxTries bounds attempts per cycle.
const DefaultMaxTries = 3

// Dialer opens a fresh transport. ONE attempt per call.
type Dialer func(ctx context.Context) (transport.Transport, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	DeviceID string
	Interval time.Duration
	Timeout  time.Duration // receive window per frame
	MaxTries int

	// Setup runs on every fresh connection, in order.
	Setup []Command
	// SetClock pushes host time (UTC) to the device after Setup.
	SetClock bool
}

// Parts are the collaborators one device owns exclusively.
type Parts struct {
	Dial    Dialer
	Reader  frame.Reader
	Decoder packet.Decoder
	Engine  *delta.Engine
	Log     logging.Logger
}

// cycle is the per-poll scratch state.
type cycle struct {
	state   State
	tries   int
	frame   []byte
	at      time.Time
	record  *delta.Record
	last    error
	lastErr Kind
}

// Poller drives one device: one poll at a time, connection reused while healthy.
// On transport death the connection is dropped and Dial is used on the next try.
type Poller struct {
	cfg Config
	p   Parts
	tr  transport.Transport
	now func() time.Time

	cyc cycle
}

// New creates a poller with immutable config.
func New(cfg Config, p Parts) (*Poller, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("poller: device id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("poller: timeout must be > 0")
	}
	if p.Dial == nil || p.Reader == nil || p.Decoder == nil || p.Engine == nil {
		return nil, errors.New("poller: dialer, reader, decoder and engine required")
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	if p.Log == nil {
		p.Log = logging.Nop()
	}
	return &Poller{cfg: cfg, p: p, now: time.Now}, nil
}

// DeviceID returns the configured device id.
func (p *Poller) DeviceID() string { return p.cfg.DeviceID }

// State reports where the current cycle stands.
func (p *Poller) State() State { return p.cyc.state }

// Begin starts a new cycle. Any previous cycle is discarded.
func (p *Poller) Begin() {
	p.cyc = cycle{state: StateIdle, tries: 1}
}

// PollOnce performs exactly one poll cycle, retries included.
// It never panics: failure is reported in PollResult.Err.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	p.Begin()
	for {
		switch p.Step(ctx) {
		case StateDone, StateFailed:
			return p.Result()
		}
	}
}

// Result reports the outcome of a finished cycle.
func (p *Poller) Result() PollResult {
	c := &p.cyc
	res := PollResult{
		DeviceID: p.cfg.DeviceID,
		At:       c.at,
		Tries:    c.tries,
	}
	if res.At.IsZero() {
		res.At = p.now()
	}

	switch c.state {
	case StateDone:
		res.Record = c.record
	case StateFailed:
		res.Err = &PollError{
			DeviceID: p.cfg.DeviceID,
			Tries:    c.tries,
			Kind:     c.lastErr,
			Err:      c.last,
		}
	default:
		res.Err = errors.New("poller: cycle not finished")
	}
	return res
}

// Step advances the cycle by one transition and returns the new state.
func (p *Poller) Step(ctx context.Context) State {
	c := &p.cyc

	if err := ctx.Err(); err != nil && c.state != StateDone && c.state != StateFailed {
		c.last, c.lastErr = err, KindCanceled
		c.state = StateFailed
		return c.state
	}

	switch c.state {
	case StateIdle:
		if p.tr == nil {
			if err := p.connect(ctx); err != nil {
				return p.fail(err)
			}
		}
		c.state = StateSending

	case StateSending:
		if err := p.tr.Flush(); err != nil {
			return p.fail(err)
		}
		if err := p.tr.Send([]byte(PollCommand)); err != nil {
			return p.fail(err)
		}
		c.state = StateAwaitingResponse

	case StateAwaitingResponse:
		f, err := p.p.Reader.ReadFrame(p.tr, p.cfg.Timeout)
		if err != nil {
			return p.fail(err)
		}
		c.frame = f
		c.at = p.now()
		c.state = StateDecoding

	case StateDecoding:
		snap, err := p.p.Decoder.Decode(c.frame, c.at)
		if err != nil {
			return p.fail(err)
		}
		rec := p.p.Engine.Process(snap)
		c.record = &rec
		c.state = StateDone

	case StateRetrying:
		if c.lastErr == KindCanceled || c.tries >= p.cfg.MaxTries {
			c.state = StateFailed
			if c.lastErr == KindContent {
				p.p.Log.Error("device %s: %v (giving up after %d tries)", p.cfg.DeviceID, c.last, c.tries)
			}
			return c.state
		}
		c.tries++
		c.frame = nil
		switch c.lastErr {
		case KindTransport:
			p.drop()
		default:
			p.p.Reader.Reset()
		}
		c.state = StateIdle
	}

	return c.state
}

// fail records err and moves to Retrying.
func (p *Poller) fail(err error) State {
	c := &p.cyc
	c.last = err
	c.lastErr = Classify(err)
	p.p.Log.Warning("device %s: try %d/%d %s failed (%s): %v",
		p.cfg.DeviceID, c.tries, p.cfg.MaxTries, c.state, c.lastErr, err)
	c.state = StateRetrying
	return c.state
}

// connect dials and runs setup on the fresh connection.
// A connection whose setup failed is dropped, never reused half configured.
func (p *Poller) connect(ctx context.Context) error {
	tr, err := p.p.Dial(ctx)
	if err != nil {
		return err
	}
	p.tr = tr
	p.p.Reader.Reset()

	if err := p.setup(ctx); err != nil {
		p.drop()
		return err
	}
	return nil
}

func (p *Poller) setup(ctx context.Context) error {
	for _, cmd := range p.cfg.Setup {
		if err := p.exchange(ctx, cmd); err != nil {
			return err
		}
	}
	if p.cfg.SetClock {
		if err := p.exchange(ctx, SetTime(p.now())); err != nil {
			return err
		}
	}
	if len(p.cfg.Setup) > 0 || p.cfg.SetClock {
		p.p.Log.Info("device %s: setup complete", p.cfg.DeviceID)
	}
	return nil
}

// drop discards the connection; the next Idle step redials.
func (p *Poller) drop() {
	if p.tr == nil {
		return
	}
	if err := p.tr.Close(); err != nil {
		p.p.Log.Debug("device %s: close: %v", p.cfg.DeviceID, err)
	}
	p.tr = nil
	p.p.Reader.Reset()
}

// Close releases the connection, if any.
func (p *Poller) Close() error {
	if p.tr == nil {
		return nil
	}
	err := p.tr.Close()
	p.tr = nil
	return err
}
