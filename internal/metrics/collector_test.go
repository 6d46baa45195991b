// internal/metrics/collector_test.go
package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/gem-poller/internal/delta"
	"github.com/tamzrod/gem-poller/internal/frame"
	"github.com/tamzrod/gem-poller/internal/poller"
)

func okResult(values map[string]float64, resets ...int) poller.PollResult {
	return poller.PollResult{
		DeviceID: "gem1",
		At:       time.Unix(1700000000, 0),
		Tries:    1,
		Record:   &delta.Record{DeviceID: "gem1", Values: values, Resets: resets},
	}
}

func TestDescribe(t *testing.T) {
	c := NewCollector()

	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, 12, n)
}

func TestCollect_Empty(t *testing.T) {
	assert.Equal(t, 0, testutil.CollectAndCount(NewCollector()))
}

func TestCollect_PollOutcomes(t *testing.T) {
	c := NewCollector()

	require.NoError(t, c.Write(okResult(map[string]float64{"ch1_a_power": 100}, 1)))
	require.NoError(t, c.Write(poller.PollResult{
		DeviceID: "gem1",
		Tries:    3,
		Err:      &poller.PollError{DeviceID: "gem1", Tries: 3, Kind: poller.KindFraming, Err: &frame.ChecksumError{Want: 1, Got: 2}},
	}))

	expected := `
# HELP gem_poll_success Whether the last poll cycle produced a record
# TYPE gem_poll_success gauge
gem_poll_success{device="gem1"} 0
# HELP gem_polls_total Poll cycles by outcome
# TYPE gem_polls_total counter
gem_polls_total{device="gem1",outcome="failed"} 1
gem_polls_total{device="gem1",outcome="ok"} 1
# HELP gem_poll_tries Attempts used by the last poll cycle
# TYPE gem_poll_tries gauge
gem_poll_tries{device="gem1"} 3
# HELP gem_last_error_code Code of the last poll failure, 0 when healthy
# TYPE gem_last_error_code gauge
gem_last_error_code{device="gem1"} 20
# HELP gem_counter_resets_total Channel counter resets detected
# TYPE gem_counter_resets_total counter
gem_counter_resets_total{device="gem1"} 1
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"gem_poll_success", "gem_polls_total", "gem_poll_tries", "gem_last_error_code", "gem_counter_resets_total")
	assert.NoError(t, err)
}

func TestCollect_ChannelValues(t *testing.T) {
	c := NewCollector()

	require.NoError(t, c.Write(okResult(map[string]float64{
		"ch1_a_power":     1000,
		"ch1_p_power":     -250,
		"ch1_a_energy2":   3600000,
		"ch1_p_energy2":   -1800,
		"ch2_volt":        121.5,
		"ch3_amp":         4.2,
		"ch1_temperature": 21.5,
		"ch4_count":       17,
		"ch1_ad_energy2":  5000, // not exported
		"garbage":         1,
	})))

	expected := `
# HELP gem_channel_power_watts Average power over the last poll interval
# TYPE gem_channel_power_watts gauge
gem_channel_power_watts{channel="1",device="gem1",direction="absolute"} 1000
gem_channel_power_watts{channel="1",device="gem1",direction="net"} -250
# HELP gem_channel_energy Accumulated absolute channel energy in the configured unit
# TYPE gem_channel_energy counter
gem_channel_energy{channel="1",device="gem1"} 3.6e+06
# HELP gem_channel_net_energy Accumulated polarized channel energy in the configured unit
# TYPE gem_channel_net_energy gauge
gem_channel_net_energy{channel="1",device="gem1"} -1800
# HELP gem_voltage_volts Line voltage
# TYPE gem_voltage_volts gauge
gem_voltage_volts{channel="2",device="gem1"} 121.5
# HELP gem_channel_current_amps Channel current
# TYPE gem_channel_current_amps gauge
gem_channel_current_amps{channel="3",device="gem1"} 4.2
# HELP gem_temperature_celsius Temperature sensor reading
# TYPE gem_temperature_celsius gauge
gem_temperature_celsius{channel="1",device="gem1"} 21.5
# HELP gem_pulse_count Pulse counter reading
# TYPE gem_pulse_count gauge
gem_pulse_count{channel="4",device="gem1"} 17
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"gem_channel_power_watts", "gem_channel_energy", "gem_channel_net_energy", "gem_voltage_volts",
		"gem_channel_current_amps", "gem_temperature_celsius", "gem_pulse_count")
	assert.NoError(t, err)
}

func TestCollect_FailureKeepsLastValues(t *testing.T) {
	c := NewCollector()

	require.NoError(t, c.Write(okResult(map[string]float64{"ch1_a_power": 50})))
	require.NoError(t, c.Write(poller.PollResult{DeviceID: "gem1", Tries: 3, Err: &frame.IncompleteFrameError{Want: 10, Got: 4}}))

	// 6 device series + 1 channel series
	assert.Equal(t, 7, testutil.CollectAndCount(c))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector()))
}

func TestSplitName(t *testing.T) {
	ch, field, ok := splitName("ch12_a_power")
	assert.True(t, ok)
	assert.Equal(t, "12", ch)
	assert.Equal(t, "a_power", field)

	for _, bad := range []string{"a_power", "ch_a_power", "ch12"} {
		_, _, ok := splitName(bad)
		assert.False(t, ok, bad)
	}
}
