// internal/frame/reader_test.go
package frame

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/gem-poller/internal/transport"
)

// ---- fake source ----

type step struct {
	data []byte
	err  error
}

type fakeSource struct {
	steps []step
	calls int
}

func (f *fakeSource) Receive(time.Duration) ([]byte, error) {
	f.calls++
	if len(f.steps) == 0 {
		return nil, &transport.TimeoutError{Wait: "test"}
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.data, s.err
}

func chunks(parts ...[]byte) *fakeSource {
	f := &fakeSource{}
	for _, p := range parts {
		f.steps = append(f.steps, step{data: p})
	}
	return f
}

// binaryFrame builds a valid frame of n bytes with a correct checksum.
func binaryFrame(n int) []byte {
	f := make([]byte, n)
	f[0], f[1] = 0xFE, 0xFF
	for i := 2; i < n-3; i++ {
		f[i] = byte(i)
	}
	f[n-3], f[n-2] = 0xFE, 0xFF
	f[n-1] = Sum(f[:n-1])
	return f
}

// ---- binary ----

func TestBinary_AssemblesAcrossChunks(t *testing.T) {
	f := binaryFrame(619)
	src := chunks(f[:100], f[100:400], f[400:])

	r := NewBinary(619)
	got, err := r.ReadFrame(src, time.Second)
	require.NoError(t, err)
	assert.Equal(t, f, got)
	assert.Equal(t, 3, src.calls)
}

func TestBinary_KeepsTrailingBytes(t *testing.T) {
	a := binaryFrame(10)
	b := binaryFrame(10)
	b[2] = 0x42
	b[9] = Sum(b[:9])

	src := chunks(append(append([]byte{}, a...), b[:4]...), b[4:])
	r := NewBinary(10)

	got, err := r.ReadFrame(src, time.Second)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = r.ReadFrame(src, time.Second)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestBinary_TimeoutMidFrameIsIncomplete(t *testing.T) {
	f := binaryFrame(625)
	src := chunks(f[:300])

	_, err := NewBinary(625).ReadFrame(src, 50*time.Millisecond)

	var ie *IncompleteFrameError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 300, ie.Got)
	assert.Equal(t, 625, ie.Want)
}

func TestBinary_TimeoutWithNothingStaysTransportError(t *testing.T) {
	_, err := NewBinary(619).ReadFrame(chunks(), 50*time.Millisecond)

	var te *transport.TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestBinary_IOErrorPassesThrough(t *testing.T) {
	src := &fakeSource{steps: []step{{err: &transport.IOError{Op: "receive", Err: errors.New("reset")}}}}

	_, err := NewBinary(619).ReadFrame(src, time.Second)

	var ioe *transport.IOError
	assert.ErrorAs(t, err, &ioe)
}

func TestBinary_BadChecksum(t *testing.T) {
	f := binaryFrame(619)
	f[100]++

	_, err := NewBinary(619).ReadFrame(chunks(f), time.Second)

	var ce *ChecksumError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Envelope)
}

func TestBinary_BadEnvelope(t *testing.T) {
	f := binaryFrame(619)
	f[616] = 0x00
	f[618] = Sum(f[:618])

	_, err := NewBinary(619).ReadFrame(chunks(f), time.Second)

	var ce *ChecksumError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Envelope)
}

func TestBinary_ResetDropsPending(t *testing.T) {
	f := binaryFrame(10)
	src := chunks(append(append([]byte{}, f...), 0x01, 0x02))
	r := NewBinary(10)

	_, err := r.ReadFrame(src, time.Second)
	require.NoError(t, err)
	r.Reset()

	_, err = r.ReadFrame(src, 10*time.Millisecond)
	var te *transport.TimeoutError
	assert.ErrorAs(t, err, &te)
}

// ---- ascii ----

func TestASCII_SplitsOnTerminator(t *testing.T) {
	src := chunks([]byte("OFF"), []byte("\r\nOK\r"), []byte("\n"))
	r := NewASCII("\r\n", 64)

	got, err := r.ReadFrame(src, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "OFF\r\n", string(got))

	got, err = r.ReadFrame(src, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", string(got))
}

func TestASCII_TooLarge(t *testing.T) {
	src := chunks([]byte("n=1&m=2&c1=3&c2=4"), []byte("&c3=5&c4=6"))

	_, err := NewASCII("\r\n", 16).ReadFrame(src, time.Second)

	var fe *FrameTooLargeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 16, fe.Max)
}

func TestASCII_PartialThenTimeoutIsIncomplete(t *testing.T) {
	_, err := NewASCII("\r\n", 0).ReadFrame(chunks([]byte("n=0071")), 20*time.Millisecond)

	var ie *IncompleteFrameError
	assert.ErrorAs(t, err, &ie)
}

func TestASCII_CRC(t *testing.T) {
	body := "n=00712345&m=1&c1=10&p1=5"
	good := fmt.Sprintf("%s&crc=%04X\r\n", body, CRC([]byte(body)))
	bad := fmt.Sprintf("%s&crc=%04X\r\n", body, CRC([]byte(body))^0x0101)

	got, err := NewASCII("\r\n", 0).ReadFrame(chunks([]byte(good)), time.Second)
	require.NoError(t, err)
	assert.Equal(t, body, string(StripCRC(got)))

	_, err = NewASCII("\r\n", 0).ReadFrame(chunks([]byte(bad)), time.Second)
	var ce *ChecksumError
	assert.ErrorAs(t, err, &ce)
}

func TestCRC_CheckValue(t *testing.T) {
	// CRC-16/ARC check value
	assert.Equal(t, uint16(0xBB3D), CRC([]byte("123456789")))
}
