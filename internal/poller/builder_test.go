// internal/poller/builder_test.go
package poller

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/tamzrod/gem-poller/internal/config"
)

func goldenFrame(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "packet", "testdata", name))
	require.NoError(t, err)
	b, err := hex.DecodeString(strings.Join(strings.Fields(string(raw)), ""))
	require.NoError(t, err)
	return b
}

// buildDevice runs a device config through the same path as the binary:
// Validate, Normalize, Build.
func buildDevice(t *testing.T, d cfg.DeviceConfig, conns ...*fakeConn) (*Poller, *dialer) {
	t.Helper()
	c := &cfg.Config{Devices: []cfg.DeviceConfig{d}}
	require.NoError(t, cfg.Validate(c))
	cfg.Normalize(c)

	p, closeFn, err := Build(c.Devices[0], nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	dl := &dialer{conns: conns}
	p.p.Dial = dl.dial
	return p, dl
}

func TestBuild_BinaryDeviceWithFewChannels(t *testing.T) {
	tests := []struct {
		packetType string
		file       string
	}{
		{"BinaryWithTime", "bin48_net_time.hex"},
		{"GEMBin48Net", "bin48_net.hex"},
	}

	for _, tt := range tests {
		t.Run(tt.packetType, func(t *testing.T) {
			f := goldenFrame(t, tt.file)
			// the frame arrives in two pieces
			conn := &fakeConn{steps: []step{{data: f[:300]}, {data: f[300:]}}}

			noPulses := 0
			p, dl := buildDevice(t, cfg.DeviceConfig{
				ID:         "gem1",
				PacketType: tt.packetType,
				Connection: cfg.ConnectionConfig{Host: "gem.local"},
				Layout:     cfg.LayoutConfig{Channels: 4, Pulses: &noPulses},
			}, conn)

			res := p.PollOnce(context.Background())
			require.NoError(t, res.Err)
			require.NotNil(t, res.Record)
			assert.Equal(t, 1, res.Tries)
			assert.Equal(t, 1, dl.dials)
			assert.Equal(t, []string{PollCommand}, conn.sent)

			v := res.Record.Values
			assert.Equal(t, 1003600.0, v["ch1_a_energy2"])
			assert.Equal(t, 4014400.0, v["ch4_a_energy2"])
			assert.NotContains(t, v, "ch5_a_energy2")

			// all eight sensors decode even with four channels
			assert.Equal(t, 21.5, v["ch1_temperature"])
			assert.Equal(t, 1.0, v["ch8_temperature"])
			assert.NotContains(t, v, "ch1_count")

			assert.Equal(t, "00712345", res.Record.Serial)
			assert.Equal(t, tt.packetType == "BinaryWithTime", res.Record.DeviceTime != nil)
		})
	}
}

func TestBuild_BinaryDeltaAcrossPolls(t *testing.T) {
	f := goldenFrame(t, "bin48_net_time.hex")
	conn := &fakeConn{steps: []step{{data: f}, {data: f}}}

	p, _ := buildDevice(t, cfg.DeviceConfig{
		ID:         "gem1",
		Connection: cfg.ConnectionConfig{Host: "gem.local"},
		Layout:     cfg.LayoutConfig{Channels: 2},
	}, conn)

	clk := &clock{t: t0}
	p.now = clk.now

	require.NoError(t, p.PollOnce(context.Background()).Err)
	clk.t = clk.t.Add(10 * time.Second)
	res := p.PollOnce(context.Background())
	require.NoError(t, res.Err)

	// identical counters ten seconds apart
	assert.Equal(t, 0.0, res.Record.Values["ch2_ad_energy2"])
	assert.Equal(t, 0.0, res.Record.Values["ch2_a_power"])
	assert.Equal(t, 10.0, res.Record.Values["ch1_count"])
}
