// Package observability holds the Prometheus metrics of a figure run.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms of one run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RowsRead      prometheus.Counter
	RowsDropped   prometheus.Counter
	RowsUndated   prometheus.Counter
	TileRequests  *prometheus.CounterVec   // labels: source={cache,network}
	RenderSeconds *prometheus.HistogramVec // labels: figure={geo,cluster}
	FigureErrors  *prometheus.CounterVec   // labels: figure={geo,cluster}
}

// NewMetrics creates the run metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crashmap",
			Name:      "rows_read_total",
			Help:      "Rows read from the accident table.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crashmap",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped for missing coordinates.",
		}),
		RowsUndated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crashmap",
			Name:      "rows_undated_total",
			Help:      "Rows kept without a parseable date.",
		}),
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crashmap",
			Name:      "tile_requests_total",
			Help:      "Basemap tiles served by source.",
		}, []string{"source"}),
		RenderSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crashmap",
			Name:      "render_duration_seconds",
			Help:      "Time to compose and write one figure.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"figure"}),
		FigureErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crashmap",
			Name:      "figure_errors_total",
			Help:      "Figures that failed to render.",
		}, []string{"figure"}),
	}

	m.registry.MustRegister(
		m.RowsRead,
		m.RowsDropped,
		m.RowsUndated,
		m.TileRequests,
		m.RenderSeconds,
		m.FigureErrors,
	)

	return m
}

// Registry exposes the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Rows records loader statistics.
func (m *Metrics) Rows(read, dropped, undated int) {
	if m == nil {
		return
	}
	m.RowsRead.Add(float64(read))
	m.RowsDropped.Add(float64(dropped))
	m.RowsUndated.Add(float64(undated))
}

// TileFetched counts one tile served from the given source.
func (m *Metrics) TileFetched(source string) {
	if m == nil {
		return
	}
	m.TileRequests.WithLabelValues(source).Inc()
}

// Rendered records the outcome of one figure.
func (m *Metrics) Rendered(figure string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FigureErrors.WithLabelValues(figure).Inc()
		return
	}
	m.RenderSeconds.WithLabelValues(figure).Observe(d.Seconds())
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
