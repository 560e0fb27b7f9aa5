// Package metrics collects client-side Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is implemented by Collector and Nop. The API client, relay and
// ledger depend on it rather than on Prometheus directly.
type Recorder interface {
	RecordRequest(method string, status int, latency time.Duration)
	RecordRetry(method string)
	RecordCacheLookup(result string)
	RecordRelayEvent(kind string)
	RecordReconnect()
	SetRelayConnected(connected bool)
	SetUnread(count int)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	requests       *prometheus.CounterVec
	latency        prometheus.Histogram
	retries        *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	relayEvents    *prometheus.CounterVec
	reconnects     prometheus.Counter
	relayConnected prometheus.Gauge
	unread         prometheus.Gauge
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropzy_api_requests_total",
			Help: "API requests by method and status code (0 = no response).",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dropzy_api_request_duration_seconds",
			Help:    "Latency of individual API request attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropzy_api_retries_total",
			Help: "API request retries by method.",
		}, []string{"method"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropzy_cache_lookups_total",
			Help: "Response cache lookups by result.",
		}, []string{"result"}),
		relayEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropzy_relay_events_total",
			Help: "Realtime events delivered by kind.",
		}, []string{"kind"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropzy_relay_reconnects_total",
			Help: "Scheduled realtime reconnect attempts.",
		}),
		relayConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dropzy_relay_connected",
			Help: "1 while the realtime channel is open.",
		}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dropzy_notifications_unread",
			Help: "Unread notifications in the local ledger.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.retries,
		c.cacheLookups,
		c.relayEvents,
		c.reconnects,
		c.relayConnected,
		c.unread,
	)

	return c
}

func (c *Collector) RecordRequest(method string, status int, latency time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.latency.Observe(latency.Seconds())
}

func (c *Collector) RecordRetry(method string) {
	c.retries.WithLabelValues(method).Inc()
}

func (c *Collector) RecordCacheLookup(result string) {
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRelayEvent(kind string) {
	c.relayEvents.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordReconnect() {
	c.reconnects.Inc()
}

func (c *Collector) SetRelayConnected(connected bool) {
	if connected {
		c.relayConnected.Set(1)
		return
	}
	c.relayConnected.Set(0)
}

func (c *Collector) SetUnread(count int) {
	c.unread.Set(float64(count))
}

// Handler returns the HTTP handler serving gatherer in the exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordRetry(string)                       {}
func (Nop) RecordCacheLookup(string)                 {}
func (Nop) RecordRelayEvent(string)                  {}
func (Nop) RecordReconnect()                         {}
func (Nop) SetRelayConnected(bool)                   {}
func (Nop) SetUnread(int)                            {}
