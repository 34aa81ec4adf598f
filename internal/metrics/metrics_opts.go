package metrics

import "github.com/prometheus/client_golang/prometheus"

type MetricsOpt func(*Metrics)

// WithRegisterer registers the series somewhere other than the default
// registry. Tests use it to keep registrations isolated.
func WithRegisterer(r prometheus.Registerer) MetricsOpt {
	return func(m *Metrics) {
		m.registerer = r
	}
}
