// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes recorded per bot endpoint.
const (
	OutcomeAuthorized   = "authorized"
	OutcomeDenied       = "denied"
	OutcomeServiceError = "service_error"
)

var (
	registerOnce sync.Once
	registerErr  error

	requestsTotal         *prometheus.CounterVec
	consentPromptsTotal   *prometheus.CounterVec
	consentApprovalsTotal *prometheus.CounterVec
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
)

// Register creates the collectors and registers them on reg (the default registerer when nil).
// It returns the handler to expose on /metrics. Safe to call more than once.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zhibot_requests_total",
			Help: "Bot webhook calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"})

		consentPromptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zhibot_consent_prompts_total",
			Help: "Interactive consent prompts issued",
		}, []string{"endpoint"})

		consentApprovalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zhibot_consent_approvals_total",
			Help: "Caller ids approved through interactive consent",
		}, []string{"endpoint"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zhibot_http_requests_total",
			Help: "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zhibot_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		for _, c := range []prometheus.Collector{
			requestsTotal, consentPromptsTotal, consentApprovalsTotal, httpRequestsTotal, httpRequestDuration,
		} {
			if err := registerCollector(reg, c); err != nil {
				registerErr = err
				return
			}
		}
	})
	if registerErr != nil {
		return nil, registerErr
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// RecordRequest counts one bot call outcome. No-op before Register.
func RecordRequest(endpoint, outcome string) {
	if requestsTotal != nil {
		requestsTotal.WithLabelValues(endpoint, outcome).Inc()
	}
}

func RecordConsentPrompt(endpoint string) {
	if consentPromptsTotal != nil {
		consentPromptsTotal.WithLabelValues(endpoint).Inc()
	}
}

func RecordConsentApproval(endpoint string) {
	if consentApprovalsTotal != nil {
		consentApprovalsTotal.WithLabelValues(endpoint).Inc()
	}
}

// WithMetrics instruments an HTTP handler with request counters and latency.
func WithMetrics(next http.Handler) http.Handler {
	if httpRequestsTotal == nil || httpRequestDuration == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			// the mux fills in r.Pattern while routing
			method := strings.ToUpper(r.Method)
			path := routeLabel(r)
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, p, ok := strings.Cut(r.Pattern, " "); ok {
		return p
	}
	return r.Pattern
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
