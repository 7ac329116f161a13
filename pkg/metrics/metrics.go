package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unit outcomes recorded by the scraper.
const (
	OutcomeCommitted = "committed"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SweepsTotal       *prometheus.CounterVec
	UnitsTotal        *prometheus.CounterVec
	ListingsCommitted prometheus.Counter
	UnitDuration      *prometheus.HistogramVec
	SweepPosition     prometheus.Gauge

	StatsCacheLookups *prometheus.CounterVec
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		SweepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_sweeps_total",
			Help: "Catalog sweeps by outcome.",
		}, []string{"outcome"}), // completed, failed, cancelled

		UnitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_units_total",
			Help: "Item-variants processed by outcome.",
		}, []string{"outcome"}),

		ListingsCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "scraper_listings_committed_total",
			Help: "Listings handed to the store, including ones already present.",
		}),

		UnitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_unit_duration_seconds",
			Help:    "Time spent extracting one item-variant.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"state"}),

		SweepPosition: f.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_sweep_position",
			Help: "Index of the item-variant currently being scraped.",
		}),

		StatsCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stats_cache_lookups_total",
			Help: "Statistics cache lookups by result.",
		}, []string{"result"}), // hit, miss, error
	}
}
