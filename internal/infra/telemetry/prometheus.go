package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mgmtd/internal/domain"
)

type PrometheusMetrics struct {
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	accessRecords   prometheus.Counter
	dumps           *prometheus.CounterVec
	levelChanges    *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mgmtd_http_request_duration_seconds",
				Help:    "Duration of served HTTP requests in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "code"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mgmtd_http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
		accessRecords: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mgmtd_access_log_records_total",
				Help: "Total number of requests captured into the access log buffer",
			},
		),
		dumps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mgmtd_dumps_total",
				Help: "Total number of diagnostic dumps generated",
			},
			[]string{"kind", "status"},
		),
		levelChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mgmtd_log_level_changes_total",
				Help: "Total number of runtime log level changes",
			},
			[]string{"logger"},
		),
	}
}

func (p *PrometheusMetrics) ObserveRequest(method string, status int, duration time.Duration) {
	p.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) SetInFlight(count int) {
	p.inFlight.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveAccessRecord() {
	p.accessRecords.Inc()
}

func (p *PrometheusMetrics) ObserveDump(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.dumps.WithLabelValues(kind, status).Inc()
}

func (p *PrometheusMetrics) ObserveLevelChange(logger string) {
	p.levelChanges.WithLabelValues(logger).Inc()
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
