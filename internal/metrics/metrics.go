// Package metrics exposes monitor activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "seismoalert"

// Fetch outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector owns a private registry so tests and multiple monitors never
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	eventsFetched prometheus.Gauge
	alertsTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	bValue        prometheus.Gauge
	anomalies     prometheus.Gauge
}

// New creates a collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "USGS catalog fetches by outcome.",
		}, []string{"status"}),
		eventsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_fetched",
			Help:      "Events in the most recently fetched catalog.",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts sent by rule.",
		}, []string{"rule"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of monitoring cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		bValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "b_value",
			Help:      "Gutenberg-Richter b-value of the latest catalog (NaN when not computable).",
		}),
		anomalies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalies_detected",
			Help:      "Anomalous windows found in the latest catalog.",
		}),
	}

	c.registry.MustRegister(
		c.fetchTotal,
		c.eventsFetched,
		c.alertsTotal,
		c.cycleDuration,
		c.bValue,
		c.anomalies,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Gather implements prometheus.Gatherer over the private registry.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) { return c.registry.Gather() }

// Handler serves the collector in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveFetch records one fetch. events is ignored when err is non-nil.
func (c *Collector) ObserveFetch(events int, err error) {
	if err != nil {
		c.fetchTotal.WithLabelValues(StatusError).Inc()
		return
	}
	c.fetchTotal.WithLabelValues(StatusOK).Inc()
	c.eventsFetched.Set(float64(events))
}

// ObserveAlert counts a sent alert.
func (c *Collector) ObserveAlert(rule string) {
	c.alertsTotal.WithLabelValues(rule).Inc()
}

// ObserveCycle records a cycle duration.
func (c *Collector) ObserveCycle(d time.Duration) {
	c.cycleDuration.Observe(d.Seconds())
}

// SetAnalysis publishes the latest statistics.
func (c *Collector) SetAnalysis(bValue float64, anomalies int) {
	c.bValue.Set(bValue)
	c.anomalies.Set(float64(anomalies))
}
