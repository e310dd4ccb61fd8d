// Package metrics defines the prometheus collectors exported by the viewer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "har_viewer"

type Metrics struct {
	registry         *prometheus.Registry
	ActiveSessions   prometheus.Gauge
	SearchesTotal    prometheus.Counter
	SearchDuration   prometheus.Histogram
	SearchMatches    prometheus.Histogram
	AnalyzerUploads  *prometheus.CounterVec
	WebsocketClients prometheus.Gauge
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live viewer sessions",
		}),
		SearchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total non-empty searches executed",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time spent filtering and enumerating matches",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		SearchMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_matches",
			Help:      "Match locations produced per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		AnalyzerUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_uploads_total",
			Help:      "Archives sent to the analyzer by outcome",
		}, []string{"outcome"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open live search connections",
		}),
	}
	r.MustRegister(m.ActiveSessions, m.SearchesTotal, m.SearchDuration, m.SearchMatches,
		m.AnalyzerUploads, m.WebsocketClients)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
