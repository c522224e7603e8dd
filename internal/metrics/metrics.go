package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobs_ai"

// Metrics holds the HTTP and interview collectors. It implements
// interview.Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
	httpResponseSize *prometheus.HistogramVec

	interviewsCreated    prometheus.Counter
	interviewsStarted    prometheus.Counter
	questionsGenerated   *prometheus.CounterVec
	evaluationsScheduled *prometheus.CounterVec
	evaluationsCompleted *prometheus.CounterVec
	quotaRejections      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry together with the Go and
// process collectors. Every application series carries a service label.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests",
		}),
		httpResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Size of HTTP responses in bytes",
			Buckets:   prometheus.ExponentialBuckets(200, 2, 8),
		}, []string{"method", "route", "status"}),
		interviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_created_total",
			Help:      "Interviews created",
		}),
		interviewsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_started_total",
			Help:      "Interview timers started",
		}),
		questionsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_generated_total",
			Help:      "Questions fully generated and counted, by stage",
		}, []string{"stage"}),
		evaluationsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_dispatched_total",
			Help:      "Evaluations handed to the dispatcher, by trigger",
		}, []string{"trigger"}),
		evaluationsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_completed_total",
			Help:      "Evaluation deliveries handled, by outcome",
		}, []string{"outcome"}),
		quotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Requests refused by a daily quota, by resource",
		}, []string{"resource"}),
	}

	prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, reg).MustRegister(
		m.httpRequests, m.httpLatency, m.httpInFlight, m.httpResponseSize,
		m.interviewsCreated, m.interviewsStarted, m.questionsGenerated,
		m.evaluationsScheduled, m.evaluationsCompleted, m.quotaRejections,
	)
	return m
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Flush keeps streamed question chunks flowing through the recorder.
func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request metrics labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(rec.status),
		}
		m.httpRequests.With(labels).Inc()
		m.httpLatency.With(labels).Observe(time.Since(start).Seconds())
		m.httpResponseSize.With(labels).Observe(float64(rec.bytes))
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) InterviewCreated() { m.interviewsCreated.Inc() }
func (m *Metrics) InterviewStarted() { m.interviewsStarted.Inc() }

func (m *Metrics) QuestionGenerated(stage string) {
	m.questionsGenerated.WithLabelValues(stage).Inc()
}

func (m *Metrics) EvaluationDispatched(trigger string) {
	m.evaluationsScheduled.WithLabelValues(trigger).Inc()
}

func (m *Metrics) EvaluationCompleted(outcome string) {
	m.evaluationsCompleted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QuotaRejected(kind string) {
	m.quotaRejections.WithLabelValues(kind).Inc()
}
