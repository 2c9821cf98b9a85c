package mgmt

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
)

// HealthCheck reports the health of one dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error

// Options configures the management endpoints.
type Options struct {
	// Path is the mount point below the server root, "manage" by default.
	Path              string
	Endpoints         []string
	AccessLogCapacity int
	RedactEnv         bool
	Parameters        ParametersSource
	Levels            *telemetry.LevelRegistry
	RecentLogs        RecentLogs
	Gatherer          prometheus.Gatherer
	HealthChecks      map[string]HealthCheck
	Metrics           domain.Metrics
	Logger            *zap.Logger
}

// Endpoint is one entry of the management index.
type Endpoint struct {
	ID   string `json:"-"`
	Name string `json:"name"`
	Path string `json:"-"`
	URL  string `json:"url"`
}

// Management owns the management endpoints and the middlewares that feed
// them with data from the main service.
type Management struct {
	prefix    string
	enabled   []string
	mux       *http.ServeMux
	endpoints []Endpoint
	accessLog *AccessLog
	inFlight  *InFlightTracker
	logger    *zap.Logger
}

func New(opts Options) (*Management, error) {
	logger := loggerOrNop(opts.Logger)
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	capacity := opts.AccessLogCapacity
	if capacity == 0 {
		capacity = domain.DefaultAccessLogCapacity
	}

	m := &Management{
		prefix:  "/" + normalizePath(opts.Path),
		enabled: opts.Endpoints,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	m.mux.HandleFunc("GET "+m.prefix, m.serveIndex)
	m.mux.HandleFunc("GET "+m.prefix+"/{$}", m.serveIndex)

	if m.Permitted(domain.EndpointAccessLog) {
		accessLog, err := NewAccessLog(capacity, metrics, logger)
		if err != nil {
			return nil, err
		}
		m.accessLog = accessLog
	}
	if m.Permitted(domain.EndpointHeapDump) {
		m.Handle(domain.EndpointHeapDump, "Heap Dump", NewHeapDumpHandler(metrics, logger))
	}
	if m.Permitted(domain.EndpointInFlight) {
		m.inFlight = NewInFlightTracker(metrics, logger)
		m.Handle(domain.EndpointInFlight, "In Flight Requests", m.inFlight)
	}
	if m.Permitted(domain.EndpointLogging) && opts.Levels != nil {
		logging := NewLoggingHandler(opts.Levels, opts.RecentLogs, metrics, logger)
		m.Handle(domain.EndpointLogging, "Logging", logging)
		m.mux.HandleFunc("PUT "+m.prefix+"/"+domain.EndpointLogging+"/{logger}", logging.ServeLevel)
	}
	if m.Permitted(domain.EndpointThreads) {
		m.Handle(domain.EndpointThreads, "Thread Dump", NewThreadDumpHandler(metrics, logger))
	}
	if m.accessLog != nil {
		m.Handle(domain.EndpointAccessLog, "Access Log", m.accessLog)
	}
	if m.Permitted(domain.EndpointEnvVars) {
		m.Handle(domain.EndpointEnvVars, "Environment Variables", NewEnvHandler(opts.RedactEnv, logger))
	}
	if m.Permitted(domain.EndpointSysProps) {
		m.Handle(domain.EndpointSysProps, "System Properties", NewSysPropsHandler(logger))
	}
	if m.Permitted(domain.EndpointParameters) && opts.Parameters != nil {
		m.Handle(domain.EndpointParameters, "Parameters", NewParametersHandler(opts.Parameters, logger))
	}
	if m.Permitted(domain.EndpointUp) {
		m.Handle(domain.EndpointUp, "Up", http.HandlerFunc(serveUp))
	}
	if m.Permitted(domain.EndpointHealth) {
		m.Handle(domain.EndpointHealth, "Health", NewHealthHandler(opts.HealthChecks, logger))
	}
	if m.Permitted(domain.EndpointPrometheus) && opts.Gatherer != nil {
		m.Handle(domain.EndpointPrometheus, "Prometheus", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return m, nil
}

func normalizePath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return domain.DefaultManagementPath
	}
	return path
}

// EndpointPermitted reports whether name is enabled; an empty list enables
// every endpoint.
func EndpointPermitted(enabled []string, name string) bool {
	if len(enabled) == 0 {
		return true
	}
	for _, item := range enabled {
		if strings.EqualFold(strings.TrimSpace(item), name) {
			return true
		}
	}
	return false
}

func (m *Management) Permitted(name string) bool {
	return EndpointPermitted(m.enabled, name)
}

// Handle registers a GET endpoint below the management path and lists it in
// the index. It reports false when the endpoint is not enabled.
func (m *Management) Handle(id, name string, handler http.Handler) bool {
	if !m.Permitted(id) {
		return false
	}
	path := m.prefix + "/" + id
	m.mux.Handle("GET "+path, handler)
	m.endpoints = append(m.endpoints, Endpoint{ID: id, Name: name, Path: path})
	return true
}

// Prefix is the absolute mount path, such as "/manage".
func (m *Management) Prefix() string {
	return m.prefix
}

func (m *Management) AccessLog() *AccessLog {
	return m.accessLog
}

func (m *Management) InFlight() *InFlightTracker {
	return m.inFlight
}

// Endpoints lists the registered endpoints in registration order.
func (m *Management) Endpoints() []Endpoint {
	return append([]Endpoint(nil), m.endpoints...)
}

// Handler serves the management endpoints alone, for a dedicated server.
func (m *Management) Handler() http.Handler {
	return withRequestMeta(m.mux)
}

// Wrap feeds the access log and in-flight tracker from next.
func (m *Management) Wrap(next http.Handler) http.Handler {
	handler := next
	if m.accessLog != nil {
		handler = m.accessLog.Capture(handler)
	}
	if m.inFlight != nil {
		handler = m.inFlight.Track(handler)
	}
	return withRequestMeta(handler)
}

// DeployStandard mounts the management endpoints beside root on one handler
// tree. Management requests are captured like any other request.
func (m *Management) DeployStandard(root http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(m.prefix, m.mux)
	mux.Handle(m.prefix+"/", m.mux)
	mux.Handle("/", root)
	return m.Wrap(mux)
}

// LocationHandler points clients at management endpoints served elsewhere.
func LocationHandler(url string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"location": url})
	})
}

func withRequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := telemetry.RequestMetaFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		r, _ = telemetry.EnsureHTTPRequestMeta(w, r)
		next.ServeHTTP(w, r)
	})
}

func (m *Management) serveIndex(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r) + m.prefix
	endpoints := m.Endpoints()
	for i := range endpoints {
		endpoints[i].URL = base + "/" + endpoints[i].ID
	}

	switch Negotiate(r) {
	case TypeJSON:
		writeJSON(w, http.StatusOK, endpoints)
	case TypeHTML:
		writeHTML(w, m.logger, indexTemplate, endpoints)
	default:
		var sb strings.Builder
		for _, e := range endpoints {
			fmt.Fprintf(&sb, "%s: %s\n", e.Name, e.URL)
		}
		writeText(w, http.StatusOK, sb.String())
	}
}

func serveUp(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "UP\n")
}

// HealthStatus values.
const (
	HealthUp   = "UP"
	HealthDown = "DOWN"
)

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const healthCheckTimeout = 5 * time.Second

type healthHandler struct {
	checks map[string]HealthCheck
	logger *zap.Logger
}

func NewHealthHandler(checks map[string]HealthCheck, logger *zap.Logger) http.Handler {
	return &healthHandler{checks: checks, logger: loggerOrNop(logger)}
}

// Report runs every check and summarises the result.
func (h *healthHandler) Report(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := HealthReport{Status: HealthUp, Checks: make([]CheckResult, 0, len(names))}
	for _, name := range names {
		result := CheckResult{Name: name, Status: HealthUp}
		if err := h.checks[name](ctx); err != nil {
			result.Status = HealthDown
			result.Error = err.Error()
			report.Status = HealthDown
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())
	status := http.StatusOK
	if report.Status != HealthUp {
		status = http.StatusServiceUnavailable
		telemetry.LoggerWithRequest(r.Context(), h.logger).Warn("health check failed", zap.Any("checks", report.Checks))
	}
	writeJSON(w, status, report)
}

var indexTemplate = template.Must(template.New("index").Parse(`<html>
<head><title>Management Endpoints</title><meta http-equiv="content-type" content="text/html; charset=utf-8"></head>
<body>
<table>
<tr><th>Route</th><th>Link</th></tr>
{{- range .}}
<tr><td>{{.Name}}</td><td><a href="{{.URL}}">{{.URL}}</a></td></tr>
{{- end}}
</table>
</body>
</html>
`))
