// internal/transport/serial.go
package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// SerialConfig is the RS-232 session config.
type SerialConfig struct {
	Port      string
	BaudRate  int
	SendDelay time.Duration
	Timeout   time.Duration // default receive wait
}

// Serial implements Transport over a serial port.
// The port has no read deadlines, so a pump goroutine feeds Receive.
type Serial struct {
	port io.ReadWriteCloser
	cfg  SerialConfig

	data chan []byte
	errc chan error
	done chan struct{}
	once sync.Once

	readyAt time.Time
}

// OpenSerial opens the port. One attempt, no retries.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Port == "" {
		return nil, errors.New("transport: serial port required")
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 19200
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:        cfg.Port,
		BaudRate:        uint(cfg.BaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, &ConnectionError{Addr: cfg.Port, Err: err}
	}

	return newSerial(port, cfg), nil
}

func newSerial(port io.ReadWriteCloser, cfg SerialConfig) *Serial {
	s := &Serial{
		port: port,
		cfg:  cfg,
		data: make(chan []byte, 16),
		errc: make(chan error, 1),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *Serial) pump() {
	buf := make([]byte, readChunk)
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.data <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case s.errc <- err:
			case <-s.done:
			}
			return
		}
	}
}

func (s *Serial) Send(b []byte) error {
	select {
	case <-s.done:
		return &IOError{Op: "send", Err: io.ErrClosedPipe}
	default:
	}
	if err := writeAll(s.port, b); err != nil {
		return &IOError{Op: "send", Err: err}
	}
	s.readyAt = time.Now().Add(s.cfg.SendDelay)
	return nil
}

func (s *Serial) Receive(maxWait time.Duration) ([]byte, error) {
	if maxWait <= 0 {
		maxWait = s.cfg.Timeout
	}
	if !s.readyAt.IsZero() {
		if d := time.Until(s.readyAt); d > 0 {
			time.Sleep(d)
		}
		s.readyAt = time.Time{}
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case b := <-s.data:
		return b, nil
	case err := <-s.errc:
		return nil, &IOError{Op: "receive", Err: err}
	case <-s.done:
		return nil, &IOError{Op: "receive", Err: io.ErrClosedPipe}
	case <-timer.C:
		return nil, &TimeoutError{Wait: maxWait.String()}
	}
}

// Flush drops chunks the pump has already queued.
func (s *Serial) Flush() error {
	for {
		select {
		case <-s.data:
		default:
			return nil
		}
	}
}

func (s *Serial) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	return err
}
