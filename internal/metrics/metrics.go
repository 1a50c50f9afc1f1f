// Package metrics exposes Prometheus counters for the auth bootstrap and the
// outbound REST clients.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the rest of the server depends on.
type Recorder interface {
	RecordAuthEvent(kind string)
	RecordSessionCheck(outcome string, d time.Duration)
	RecordProfileFetch(outcome string)
	RecordUpstream(service, endpoint string, status int, d time.Duration)
	RecordWaitlist(kind, outcome string)
	SetActiveVisitors(n int)
}

type Collector struct {
	authEvents      *prometheus.CounterVec
	sessionChecks   *prometheus.CounterVec
	sessionLatency  prometheus.Histogram
	profileFetches  *prometheus.CounterVec
	upstream        *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	waitlist        *prometheus.CounterVec
	activeVisitors  prometheus.Gauge
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekaai_auth_events_total",
			Help: "Auth state change events observed, by kind.",
		}, []string{"kind"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekaai_session_checks_total",
			Help: "Initial session checks, by outcome.",
		}, []string{"outcome"}),
		sessionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ekaai_session_check_seconds",
			Help:    "Latency of the initial session check.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}),
		profileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekaai_profile_fetches_total",
			Help: "Profile fetches, by outcome.",
		}, []string{"outcome"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekaai_upstream_requests_total",
			Help: "Outbound REST requests, by service, endpoint and status code.",
		}, []string{"service", "endpoint", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekaai_upstream_request_seconds",
			Help:    "Outbound REST request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		waitlist: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ekaai_waitlist_registrations_total",
			Help: "Waitlist submissions, by registration kind and outcome.",
		}, []string{"kind", "outcome"}),
		activeVisitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ekaai_active_visitors",
			Help: "Visitors with a live auth context.",
		}),
	}

	reg.MustRegister(
		c.authEvents,
		c.sessionChecks,
		c.sessionLatency,
		c.profileFetches,
		c.upstream,
		c.upstreamLatency,
		c.waitlist,
		c.activeVisitors,
	)

	return c
}

func (c *Collector) RecordAuthEvent(kind string) {
	c.authEvents.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordSessionCheck(outcome string, d time.Duration) {
	c.sessionChecks.WithLabelValues(outcome).Inc()
	c.sessionLatency.Observe(d.Seconds())
}

func (c *Collector) RecordProfileFetch(outcome string) {
	c.profileFetches.WithLabelValues(outcome).Inc()
}

// RecordUpstream records one outbound request. status 0 means a transport error.
func (c *Collector) RecordUpstream(service, endpoint string, status int, d time.Duration) {
	c.upstream.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	c.upstreamLatency.WithLabelValues(service).Observe(d.Seconds())
}

func (c *Collector) RecordWaitlist(kind, outcome string) {
	c.waitlist.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) SetActiveVisitors(n int) {
	c.activeVisitors.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Noop discards everything. Used by tests and when metrics are disabled.
type Noop struct{}

func (Noop) RecordAuthEvent(string)                            {}
func (Noop) RecordSessionCheck(string, time.Duration)          {}
func (Noop) RecordProfileFetch(string)                         {}
func (Noop) RecordUpstream(string, string, int, time.Duration) {}
func (Noop) RecordWaitlist(string, string)                     {}
func (Noop) SetActiveVisitors(int)                             {}
