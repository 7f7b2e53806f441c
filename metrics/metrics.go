// Package metrics exports render counts and durations to Prometheus by
// observing render notifications.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/karloscodes/liquidview/signals"
)

// Collector holds the render metrics. It implements prometheus.Collector.
type Collector struct {
	renders  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the metrics under namespace. Nothing is registered yet.
func New(namespace string) *Collector {
	return &Collector{
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "liquid",
				Name:      "renders_total",
				Help:      "Successful template renders.",
			},
			[]string{"template"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "liquid",
				Name:      "render_duration_seconds",
				Help:      "Time spent executing templates.",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"template"},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.renders.Describe(ch)
	c.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.renders.Collect(ch)
	c.duration.Collect(ch)
}

// Observe records every template_rendered event published on bus until the
// returned function is called.
func (c *Collector) Observe(bus *signals.Bus) (unsubscribe func()) {
	return bus.Subscribe(signals.TemplateRendered, func(ev signals.Event) error {
		c.renders.WithLabelValues(ev.Template).Inc()
		c.duration.WithLabelValues(ev.Template).Observe(ev.Duration.Seconds())
		return nil
	})
}
