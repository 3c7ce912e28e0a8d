package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avhost/av/internal/audiocore"
)

// StatsSource is the part of audiocore.Engine the collector reads
type StatsSource interface {
	Stats() audiocore.Stats
	Info() audiocore.StreamInfo
}

// EngineMetrics exports stream statistics. Values are read from the engine
// on every scrape, so nothing has to be updated from the audio path.
type EngineMetrics struct {
	source StatsSource

	callbacks     *prometheus.Desc
	underruns     *prometheus.Desc
	commands      *prometheus.Desc
	pendingBytes  *prometheus.Desc
	hookOverruns  *prometheus.Desc
	hookMax       *prometheus.Desc
	panics        *prometheus.Desc
	voices        *prometheus.Desc
	voicesDropped *prometheus.Desc
	tapDropped    *prometheus.Desc
	ahead         *prometheus.Desc
	streamTime    *prometheus.Desc
	streamInfo    *prometheus.Desc
}

// NewEngineMetrics creates and registers the engine collector
func NewEngineMetrics(registry *prometheus.Registry, source StatsSource) (*EngineMetrics, error) {
	m := &EngineMetrics{source: source}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc("av_stream_"+name, help, labels, nil)
	}
	m.callbacks = desc("callbacks_total", "Audio callbacks run by the open stream")
	m.underruns = desc("underruns_total", "Callbacks that found no fresh ring block")
	m.commands = desc("commands_total", "Command records applied on the real-time thread")
	m.pendingBytes = desc("command_pending_bytes", "Bytes waiting in the command channel")
	m.hookOverruns = desc("hook_overruns_total", "Frame hook calls longer than one block period")
	m.hookMax = desc("hook_max_seconds", "Longest frame hook call")
	m.panics = desc("panics_total", "Panics recovered in the audio callback")
	m.voices = desc("voices_active", "Voices currently mixed into the output")
	m.voicesDropped = desc("voices_dropped_total", "Voice adds rejected because the table was full")
	m.tapDropped = desc("input_tap_dropped_bytes_total", "Input bytes dropped because the tap was full")
	m.ahead = desc("ring_ahead_blocks", "Blocks written ahead of the consumer")
	m.streamTime = desc("time_seconds", "Stream time of the open stream")
	m.streamInfo = desc("info", "Open stream parameters, value is always 1",
		"backend", "state", "sample_rate", "block_size", "output")
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		m.callbacks, m.underruns, m.commands, m.pendingBytes, m.hookOverruns, m.hookMax,
		m.panics, m.voices, m.voicesDropped, m.tapDropped, m.ahead, m.streamTime, m.streamInfo,
	} {
		ch <- d
	}
}

// Collect implements the prometheus.Collector interface. Nothing but the
// info metric is reported while no stream is open.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	info := m.source.Info()
	output := ""
	if info.Output != nil {
		output = info.Output.Name
	}
	ch <- prometheus.MustNewConstMetric(m.streamInfo, prometheus.GaugeValue, 1,
		info.Backend, info.State,
		strconv.FormatFloat(info.SampleRate, 'f', -1, 64),
		strconv.Itoa(info.BlockSize), output)

	if info.State != audiocore.StateOpened.String() && info.State != audiocore.StateRunning.String() {
		return
	}

	s := m.source.Stats()
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(m.callbacks, s.Callbacks)
	counter(m.underruns, s.Underruns)
	counter(m.commands, s.Commands)
	gauge(m.pendingBytes, float64(s.PendingBytes))
	counter(m.hookOverruns, s.HookOverruns)
	gauge(m.hookMax, s.HookMax.Seconds())
	counter(m.panics, s.Panics)
	gauge(m.voices, float64(s.VoicesActive))
	counter(m.voicesDropped, s.VoicesDropped)
	counter(m.tapDropped, s.TapDroppedBytes)
	gauge(m.ahead, float64(s.Ahead))
	gauge(m.streamTime, info.StreamTime)
}
