// internal/transport/transport_test.go
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen starts a one-shot loopback server and returns a config pointing at it.
func listen(t *testing.T, handle func(c net.Conn)) Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return Config{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		Timeout: time.Second,
	}
}

// ---- tests ----

func TestDial_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Dial(context.Background(), Config{Host: "127.0.0.1", Port: port, Timeout: time.Second})

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeConnection, ce.Code())
}

func TestDial_HostRequired(t *testing.T) {
	_, err := Dial(context.Background(), Config{Port: 8083})
	assert.Error(t, err)
}

func TestSendReceive_RoundTrip(t *testing.T) {
	cfg := listen(t, func(c net.Conn) {
		buf := make([]byte, 9)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		c.Write([]byte("OFF\r\n"))
		time.Sleep(100 * time.Millisecond)
	})

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send([]byte("^^^SYSOFF")))

	got, err := tr.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "OFF\r\n", string(got))
}

func TestReceive_Timeout(t *testing.T) {
	cfg := listen(t, func(c net.Conn) {
		time.Sleep(300 * time.Millisecond)
	})

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Receive(50 * time.Millisecond)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeTimeout, te.Code())
}

func TestReceive_PeerClosedIsIOError(t *testing.T) {
	cfg := listen(t, func(c net.Conn) {})

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Receive(time.Second)

	var ioe *IOError
	require.ErrorAs(t, err, &ioe)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestSend_HonoursSendDelay(t *testing.T) {
	cfg := listen(t, func(c net.Conn) {
		buf := make([]byte, 1)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		c.Write([]byte("x"))
		time.Sleep(300 * time.Millisecond)
	})
	cfg.SendDelay = 120 * time.Millisecond

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	start := time.Now()
	require.NoError(t, tr.Send([]byte("x")))
	_, err = tr.Receive(time.Second)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), cfg.SendDelay)
}

func TestClosed_SendIsIOError(t *testing.T) {
	cfg := listen(t, func(c net.Conn) {})

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	var ioe *IOError
	assert.ErrorAs(t, tr.Send([]byte("x")), &ioe)
	assert.NoError(t, tr.Close())
}

func TestFlush_DropsQueuedInput(t *testing.T) {
	cfg := listen(t, func(c net.Conn) {
		c.Write([]byte("stale bytes"))
		buf := make([]byte, 1)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		c.Write([]byte("fresh"))
		time.Sleep(200 * time.Millisecond)
	})

	tr, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer tr.Close()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, tr.Flush())
	require.NoError(t, tr.Send([]byte("?")))

	got, err := tr.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

// ---- serial (pump over an in-memory pipe) ----

type pipePort struct {
	r *io.PipeReader
	w io.Writer
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipePort) Close() error                { return p.r.Close() }

func TestSerial_ReceiveAndTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	s := newSerial(&pipePort{r: pr, w: io.Discard}, SerialConfig{Timeout: time.Second})
	defer s.Close()

	go pw.Write([]byte("PKT\r\n"))

	got, err := s.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "PKT\r\n", string(got))

	_, err = s.Receive(20 * time.Millisecond)
	var te *TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestSerial_ReadErrorIsIOError(t *testing.T) {
	pr, pw := io.Pipe()
	s := newSerial(&pipePort{r: pr, w: io.Discard}, SerialConfig{})
	defer s.Close()

	pw.CloseWithError(errors.New("unplugged"))

	_, err := s.Receive(time.Second)
	var ioe *IOError
	assert.ErrorAs(t, err, &ioe)
}
