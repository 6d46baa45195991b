// internal/transport/tcp.go
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

// Transport is the byte pipe to one device.
// It does not retry. Retry policy belongs to the poller.
type Transport interface {
	Send(b []byte) error
	Receive(maxWait time.Duration) ([]byte, error)
	Flush() error
	Close() error
}

// Config is the socket session config.
type Config struct {
	Host      string
	Port      int
	Timeout   time.Duration // dial + write deadline, and default receive wait
	SendDelay time.Duration // honoured between Send and the first Receive
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

const readChunk = 4096

// TCP implements Transport over one net.Conn.
type TCP struct {
	conn    net.Conn
	cfg     Config
	buf     []byte
	readyAt time.Time
}

// Dial opens the socket. One attempt, no retries.
func Dial(ctx context.Context, cfg Config) (*TCP, error) {
	if cfg.Host == "" {
		return nil, errors.New("transport: host required")
	}

	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, &ConnectionError{Addr: cfg.Addr(), Err: err}
	}

	return &TCP{
		conn: conn,
		cfg:  cfg,
		buf:  make([]byte, readChunk),
	}, nil
}

// Send writes the whole command and arms the send delay.
func (t *TCP) Send(b []byte) error {
	if t == nil || t.conn == nil {
		return &IOError{Op: "send", Err: net.ErrClosed}
	}

	if t.cfg.Timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.Timeout))
	}
	if err := writeAll(t.conn, b); err != nil {
		return &IOError{Op: "send", Err: err}
	}

	t.readyAt = time.Now().Add(t.cfg.SendDelay)
	return nil
}

// Receive returns whatever bytes arrive within maxWait.
// maxWait <= 0 falls back to the session timeout.
func (t *TCP) Receive(maxWait time.Duration) ([]byte, error) {
	if t == nil || t.conn == nil {
		return nil, &IOError{Op: "receive", Err: net.ErrClosed}
	}
	if maxWait <= 0 {
		maxWait = t.cfg.Timeout
	}

	t.waitSendDelay()

	_ = t.conn.SetReadDeadline(time.Now().Add(maxWait))
	n, err := t.conn.Read(t.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, t.buf[:n])
		return out, nil
	}
	if err == nil {
		return nil, &IOError{Op: "receive", Err: io.ErrNoProgress}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil, &TimeoutError{Wait: maxWait.String()}
	}
	return nil, &IOError{Op: "receive", Err: err}
}

// Flush drops any input already queued on the socket.
func (t *TCP) Flush() error {
	if t == nil || t.conn == nil {
		return &IOError{Op: "flush", Err: net.ErrClosed}
	}

	for {
		_ = t.conn.SetReadDeadline(time.Now().Add(flushWait))
		n, err := t.conn.Read(t.buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil
			}
			return &IOError{Op: "flush", Err: err}
		}
		if n == 0 {
			return nil
		}
	}
}

// Close closes the socket. Safe on nil.
func (t *TCP) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// flushWait bounds how long Flush waits for straggling bytes.
const flushWait = 10 * time.Millisecond

func (t *TCP) waitSendDelay() {
	if t.readyAt.IsZero() {
		return
	}
	if d := time.Until(t.readyAt); d > 0 {
		time.Sleep(d)
	}
	t.readyAt = time.Time{}
}

// ---- helpers ----

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
