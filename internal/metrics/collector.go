// internal/metrics/collector.go
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/gem-poller/internal/poller"
	"github.com/tamzrod/gem-poller/internal/status"
)

// deviceState is what the last polls of one device left behind.
type deviceState struct {
	success   float64
	tries     float64
	errorCode float64
	ok        float64
	failed    float64
	resets    float64
	values    map[string]float64 // latest observation set
}

// Collector implements prometheus.Collector for poll results.
// It is fed through Write like any other sink and serves the latest state on scrape.
type Collector struct {
	mu      sync.Mutex
	devices map[string]*deviceState

	// Metrics
	pollSuccess *prometheus.Desc
	polls       *prometheus.Desc
	tries       *prometheus.Desc
	errorCode   *prometheus.Desc
	resets      *prometheus.Desc
	power       *prometheus.Desc
	energy      *prometheus.Desc
	netEnergy   *prometheus.Desc
	voltage     *prometheus.Desc
	current     *prometheus.Desc
	temperature *prometheus.Desc
	pulses      *prometheus.Desc
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		devices: make(map[string]*deviceState),
		pollSuccess: prometheus.NewDesc(
			"gem_poll_success",
			"Whether the last poll cycle produced a record",
			[]string{"device"},
			nil,
		),
		polls: prometheus.NewDesc(
			"gem_polls_total",
			"Poll cycles by outcome",
			[]string{"device", "outcome"},
			nil,
		),
		tries: prometheus.NewDesc(
			"gem_poll_tries",
			"Attempts used by the last poll cycle",
			[]string{"device"},
			nil,
		),
		errorCode: prometheus.NewDesc(
			"gem_last_error_code",
			"Code of the last poll failure, 0 when healthy",
			[]string{"device"},
			nil,
		),
		resets: prometheus.NewDesc(
			"gem_counter_resets_total",
			"Channel counter resets detected",
			[]string{"device"},
			nil,
		),
		power: prometheus.NewDesc(
			"gem_channel_power_watts",
			"Average power over the last poll interval",
			[]string{"device", "channel", "direction"},
			nil,
		),
		energy: prometheus.NewDesc(
			"gem_channel_energy",
			"Accumulated absolute channel energy in the configured unit",
			[]string{"device", "channel"},
			nil,
		),
		netEnergy: prometheus.NewDesc(
			"gem_channel_net_energy",
			"Accumulated polarized channel energy in the configured unit",
			[]string{"device", "channel"},
			nil,
		),
		voltage: prometheus.NewDesc(
			"gem_voltage_volts",
			"Line voltage",
			[]string{"device", "channel"},
			nil,
		),
		current: prometheus.NewDesc(
			"gem_channel_current_amps",
			"Channel current",
			[]string{"device", "channel"},
			nil,
		),
		temperature: prometheus.NewDesc(
			"gem_temperature_celsius",
			"Temperature sensor reading",
			[]string{"device", "channel"},
			nil,
		),
		pulses: prometheus.NewDesc(
			"gem_pulse_count",
			"Pulse counter reading",
			[]string{"device", "channel"},
			nil,
		),
	}
}

// Write records one poll result. Never fails.
func (c *Collector) Write(res poller.PollResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.devices[res.DeviceID]
	if !ok {
		d = &deviceState{}
		c.devices[res.DeviceID] = d
	}

	d.tries = float64(res.Tries)
	if res.Err != nil {
		d.success = 0
		d.failed++
		d.errorCode = float64(status.ErrorCode(res.Err))
		return nil
	}

	d.success = 1
	d.ok++
	d.errorCode = 0
	if res.Record != nil {
		d.resets += float64(len(res.Record.Resets))
		d.values = res.Record.Values
	}
	return nil
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pollSuccess
	ch <- c.polls
	ch <- c.tries
	ch <- c.errorCode
	ch <- c.resets
	ch <- c.power
	ch <- c.energy
	ch <- c.netEnergy
	ch <- c.voltage
	ch <- c.current
	ch <- c.temperature
	ch <- c.pulses
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d := c.devices[id]

		ch <- prometheus.MustNewConstMetric(c.pollSuccess, prometheus.GaugeValue, d.success, id)
		ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, d.ok, id, "ok")
		ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, d.failed, id, "failed")
		ch <- prometheus.MustNewConstMetric(c.tries, prometheus.GaugeValue, d.tries, id)
		ch <- prometheus.MustNewConstMetric(c.errorCode, prometheus.GaugeValue, d.errorCode, id)
		ch <- prometheus.MustNewConstMetric(c.resets, prometheus.CounterValue, d.resets, id)

		c.collectValues(ch, id, d.values)
	}
}

func (c *Collector) collectValues(ch chan<- prometheus.Metric, device string, values map[string]float64) {
	for name, v := range values {
		channel, field, ok := splitName(name)
		if !ok {
			continue
		}

		switch field {
		case "a_power":
			ch <- prometheus.MustNewConstMetric(c.power, prometheus.GaugeValue, v, device, channel, "absolute")
		case "p_power":
			ch <- prometheus.MustNewConstMetric(c.power, prometheus.GaugeValue, v, device, channel, "net")
		case "a_energy2":
			ch <- prometheus.MustNewConstMetric(c.energy, prometheus.CounterValue, v, device, channel)
		case "p_energy2":
			// net energy can decrease
			ch <- prometheus.MustNewConstMetric(c.netEnergy, prometheus.GaugeValue, v, device, channel)
		case "volt":
			ch <- prometheus.MustNewConstMetric(c.voltage, prometheus.GaugeValue, v, device, channel)
		case "amp":
			ch <- prometheus.MustNewConstMetric(c.current, prometheus.GaugeValue, v, device, channel)
		case "temperature":
			ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, v, device, channel)
		case "count":
			ch <- prometheus.MustNewConstMetric(c.pulses, prometheus.GaugeValue, v, device, channel)
		}
	}
}

// splitName splits "ch12_a_power" into "12" and "a_power".
func splitName(name string) (channel, field string, ok bool) {
	if !strings.HasPrefix(name, "ch") {
		return "", "", false
	}
	rest := name[2:]
	i := strings.IndexByte(rest, '_')
	if i <= 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
