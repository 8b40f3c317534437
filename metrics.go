package trafgen

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics bundles the Prometheus collectors updated by generators,
// samplers, recorders and links.  A nil *Metrics is valid and records nothing
type Metrics struct {
	gatherer prometheus.Gatherer

	UnitsSent          *prometheus.CounterVec
	BytesSent          *prometheus.CounterVec
	TransportErrors    *prometheus.CounterVec
	SamplesRecorded    *prometheus.CounterVec
	SamplesRejected    *prometheus.CounterVec
	CounterRegressions *prometheus.CounterVec
	LinkDrops          *prometheus.CounterVec
	GeneratorState     *prometheus.GaugeVec
}

// NewMetrics registers the collectors against reg, defaulting to the
// global Prometheus registry when reg is nil
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	counters := []struct {
		dst    **prometheus.CounterVec
		name   string
		help   string
		labels []string
	}{
		{&m.UnitsSent, "trafgen_units_sent_total", "Units handed to the channel by a generator.", []string{"generator"}},
		{&m.BytesSent, "trafgen_bytes_sent_total", "Bytes handed to the channel by a generator.", []string{"generator"}},
		{&m.TransportErrors, "trafgen_transport_errors_total", "Channel operations that failed, by component and fatality.", []string{"component", "fatal"}},
		{&m.SamplesRecorded, "trafgen_samples_recorded_total", "Samples appended to a recorder.", []string{"recorder"}},
		{&m.SamplesRejected, "trafgen_samples_rejected_total", "Samples rejected by a recorder for going back in time.", []string{"recorder"}},
		{&m.CounterRegressions, "trafgen_counter_regressions_total", "Sampler ticks that saw a cumulative counter decrease.", []string{"sampler"}},
		{&m.LinkDrops, "trafgen_link_drops_total", "Frames dropped at a full link queue.", []string{"link"}},
	}
	for _, c := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.name, Help: c.help}, c.labels)
		if *c.dst, err = registerCounterVec(reg, vec, c.name); err != nil {
			return nil, err
		}
	}

	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trafgen_generator_state",
		Help: "Lifecycle state of a generator (0 idle, 1 running, 2 stopped).",
	}, []string{"generator"})
	if m.GeneratorState, err = registerGaugeVec(reg, state, "trafgen_generator_state"); err != nil {
		return nil, err
	}
	return m, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}

func registerGaugeVec(reg prometheus.Registerer, g *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return g, nil
}

func (m *Metrics) unitSent(generator string, size int) {
	if m == nil {
		return
	}
	m.UnitsSent.WithLabelValues(generator).Inc()
	m.BytesSent.WithLabelValues(generator).Add(float64(size))
}

func (m *Metrics) transportError(component string, fatal bool) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(component, fmt.Sprint(fatal)).Inc()
}

func (m *Metrics) sampleRecorded(recorder string) {
	if m == nil {
		return
	}
	m.SamplesRecorded.WithLabelValues(recorder).Inc()
}

func (m *Metrics) sampleRejected(recorder string) {
	if m == nil {
		return
	}
	m.SamplesRejected.WithLabelValues(recorder).Inc()
}

func (m *Metrics) counterRegression(sampler string) {
	if m == nil {
		return
	}
	m.CounterRegressions.WithLabelValues(sampler).Inc()
}

func (m *Metrics) linkDrop(link string) {
	if m == nil {
		return
	}
	m.LinkDrops.WithLabelValues(link).Inc()
}

func (m *Metrics) generatorState(generator string, state GeneratorState) {
	if m == nil {
		return
	}
	m.GeneratorState.WithLabelValues(generator).Set(float64(state))
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
