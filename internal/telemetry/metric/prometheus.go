package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/infra/buildinfo"
)

const namespace = "sessionguard"

// Registry holds all application metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Auth metrics
	Logins     *prometheus.CounterVec
	Rejections *prometheus.CounterVec
	Refreshes  prometheus.Counter
	Evictions  prometheus.Counter
	Reaped     *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates the metrics and registers them, together with the
// Go runtime, process and build info collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Requests rejected by the auth gate, by reason.",
		}, []string{"reason"}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_refreshes_total",
			Help:      "Session deadlines extended back to the full window.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions evicted by a newer login of the same account.",
		}),
		Reaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Sessions destroyed by storage, by cause and whether a binding was removed.",
		}, []string{"cause", "unbound"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	info := buildinfo.Get()
	buildInfo := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information; the value is always 1.",
		ConstLabels: prometheus.Labels{
			"version":    info.Version,
			"commit":     info.Commit,
			"go_version": info.GoVersion,
		},
	}, func() float64 { return 1 })

	r.registry.MustRegister(
		r.Logins,
		r.Rejections,
		r.Refreshes,
		r.Evictions,
		r.Reaped,
		r.RequestsTotal,
		r.RequestDuration,
		buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Register adds further collectors, such as a StateCollector.
func (r *Registry) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordLogin counts a login attempt.
func (r *Registry) RecordLogin(result string) {
	r.Logins.WithLabelValues(result).Inc()
}

// RecordRejection counts an auth gate rejection.
func (r *Registry) RecordRejection(reason domain.RejectReason) {
	if reason == domain.ReasonNone {
		reason = "other"
	}
	r.Rejections.WithLabelValues(string(reason)).Inc()
}

// RecordRefresh counts a deadline extension.
func (r *Registry) RecordRefresh() {
	r.Refreshes.Inc()
}

// RecordEviction counts a session evicted by a newer login.
func (r *Registry) RecordEviction() {
	r.Evictions.Inc()
}

// RecordReaped counts a storage-driven destruction.
func (r *Registry) RecordReaped(cause domain.DestroyCause, unbound bool) {
	r.Reaped.WithLabelValues(string(cause), strconv.FormatBool(unbound)).Inc()
}

// ObserveHTTPRequest records one completed HTTP request.
func (r *Registry) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
