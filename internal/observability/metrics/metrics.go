// Package metrics exposes Prometheus collectors for the HTTP surface and the
// booking flow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roombook"

// Metrics owns the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	meetingsBooked   *prometheus.CounterVec
	bookingsRejected *prometheus.CounterVec
	slotsIssued      *prometheus.CounterVec
	loginsThrottled  prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		meetingsBooked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meetings_booked_total",
			Help:      "Meetings written successfully, by booking mode",
		}, []string{"mode"}),
		bookingsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_rejected_total",
			Help:      "Booking attempts rejected by availability or concurrency checks",
		}, []string{"reason"}),
		slotsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_slots_issued_total",
			Help:      "Reservation slots handed out, split by whether a pending slot was reused",
		}, []string{"reused"}),
		loginsThrottled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_throttled_total",
			Help:      "Login attempts refused by the rate limiter",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records an HTTP request metric.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}

// MeetingBooked counts a successful meeting write.
func (m *Metrics) MeetingBooked(mode string) {
	m.meetingsBooked.WithLabelValues(mode).Inc()
}

// BookingRejected counts a refused booking.
func (m *Metrics) BookingRejected(reason string) {
	m.bookingsRejected.WithLabelValues(reason).Inc()
}

// SlotIssued counts a reservation slot hand-out.
func (m *Metrics) SlotIssued(reused bool) {
	m.slotsIssued.WithLabelValues(strconv.FormatBool(reused)).Inc()
}

// LoginThrottled counts a login refused by the limiter.
func (m *Metrics) LoginThrottled() {
	m.loginsThrottled.Inc()
}
