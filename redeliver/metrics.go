package redeliver

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Commands      *prometheus.CounterVec
	Redeliveries  *prometheus.CounterVec
	Confirmations *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	Cancellations *prometheus.CounterVec
}

// NewMetrics creates the redelivery counters and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Commands:      counter("commands_total", "Commands received from items."),
		Redeliveries:  counter("redeliveries_total", "Commands redelivered to handlers."),
		Confirmations: counter("confirmations_total", "Commands confirmed by a matching handler state."),
		Failures:      counter("failures_total", "Commands whose redeliveries were exhausted."),
		Cancellations: counter("cancellations_total", "Redelivery sessions cancelled by a new command or item state."),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Commands,
		m.Redeliveries,
		m.Confirmations,
		m.Failures,
		m.Cancellations,
	}
}

func counter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redeliver",
		Name:      name,
		Help:      help,
	}, []string{"key"})
}

type counters struct {
	commands      prometheus.Counter
	redeliveries  prometheus.Counter
	confirmations prometheus.Counter
	failures      prometheus.Counter
	cancellations prometheus.Counter
}

// bind resolves the counters of a single channel key. Without metrics the
// counters are unregistered and only count locally.
func (m *Metrics) bind(key string) counters {
	if m == nil {
		m, _ = NewMetrics(nil)
	}

	return counters{
		commands:      m.Commands.WithLabelValues(key),
		redeliveries:  m.Redeliveries.WithLabelValues(key),
		confirmations: m.Confirmations.WithLabelValues(key),
		failures:      m.Failures.WithLabelValues(key),
		cancellations: m.Cancellations.WithLabelValues(key),
	}
}
