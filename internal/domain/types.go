package domain

import (
	"net/http"
	"sync"
	"time"
)

type Config struct {
	Service    ServiceConfig    `json:"service" yaml:"service"`
	Management ManagementConfig `json:"management" yaml:"management"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
	Parameters map[string]any   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

type ServiceConfig struct {
	ListenAddress          string `json:"listenAddress" yaml:"listenAddress"`
	ShutdownTimeoutSeconds int    `json:"shutdownTimeoutSeconds" yaml:"shutdownTimeoutSeconds"`
}

type ManagementConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
	// ListenAddress starts a dedicated management server when set.
	ListenAddress     string   `json:"listenAddress,omitempty" yaml:"listenAddress,omitempty"`
	ExternalURL       string   `json:"externalURL,omitempty" yaml:"externalURL,omitempty"`
	Endpoints         []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	AccessLogCapacity int      `json:"accessLogCapacity" yaml:"accessLogCapacity"`
	RecentLogCapacity int      `json:"recentLogCapacity" yaml:"recentLogCapacity"`
	RedactEnv         bool     `json:"redactEnv" yaml:"redactEnv"`
}

type LoggingConfig struct {
	Level  string            `json:"level" yaml:"level"`
	Levels map[string]string `json:"levels,omitempty" yaml:"levels,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Exporter is "none", "stdout" or "otlp".
	Exporter string `json:"exporter" yaml:"exporter"`
	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// AccessRecord is one captured request/response pair. Response fields are
// filled in when the handler returns; use View for a consistent copy.
type AccessRecord struct {
	mu sync.Mutex

	Timestamp      time.Time
	Method         string
	URL            string
	Proto          string
	RemoteAddr     string
	RequestID      string
	RequestHeaders http.Header

	completed       bool
	bytesRead       int64
	endTimestamp    time.Time
	statusCode      int
	bytesWritten    int64
	responseHeaders http.Header
}

// AccessRecordView is an immutable copy of an AccessRecord.
type AccessRecordView struct {
	Timestamp       time.Time   `json:"timestamp"`
	EndTimestamp    *time.Time  `json:"endTimestamp,omitempty"`
	Method          string      `json:"method"`
	URL             string      `json:"url"`
	Proto           string      `json:"proto"`
	RemoteAddr      string      `json:"remoteAddress"`
	RequestID       string      `json:"requestId,omitempty"`
	BytesRead       int64       `json:"bytesRead"`
	RequestHeaders  http.Header `json:"headers"`
	StatusCode      int         `json:"statusCode,omitempty"`
	BytesWritten    int64       `json:"bytesWritten,omitempty"`
	ResponseHeaders http.Header `json:"responseHeaders,omitempty"`
	Completed       bool        `json:"-"`
}

// Complete records the outcome of the request.
func (r *AccessRecord) Complete(end time.Time, bytesRead int64, status int, written int64, headers http.Header) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.completed = true
	r.bytesRead = bytesRead
	r.endTimestamp = end
	r.statusCode = status
	r.bytesWritten = written
	r.responseHeaders = headers
	r.mu.Unlock()
}

func (r *AccessRecord) View() AccessRecordView {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := AccessRecordView{
		Timestamp:      r.Timestamp,
		Method:         r.Method,
		URL:            r.URL,
		Proto:          r.Proto,
		RemoteAddr:     r.RemoteAddr,
		RequestID:      r.RequestID,
		RequestHeaders: r.RequestHeaders,
		Completed:      r.completed,
	}
	if r.completed {
		end := r.endTimestamp
		view.EndTimestamp = &end
		view.BytesRead = r.bytesRead
		view.StatusCode = r.statusCode
		view.BytesWritten = r.bytesWritten
		view.ResponseHeaders = r.responseHeaders
	}
	return view
}

// Duration returns the elapsed time of a completed record.
func (v AccessRecordView) Duration() time.Duration {
	if v.EndTimestamp == nil {
		return 0
	}
	return v.EndTimestamp.Sub(v.Timestamp)
}

type InFlightEntry struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"requestId,omitempty"`
	StartTimestamp time.Time `json:"startTimestamp"`
	SecondsSoFar   float64   `json:"secondsSoFar"`
	Method         string    `json:"method"`
	LocalAddress   string    `json:"localAddress"`
	RemoteAddress  string    `json:"remoteAddress"`
	AbsoluteURI    string    `json:"absoluteUri"`
	Query          string    `json:"query"`
	TraceID        string    `json:"traceId,omitempty"`
	SpanID         string    `json:"spanId,omitempty"`
}

// NamedValue is a single name/value row in the dump endpoints.
type NamedValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type LogLevel string

const (
	LogLevelDebug  LogLevel = "debug"
	LogLevelInfo   LogLevel = "info"
	LogLevelWarn   LogLevel = "warn"
	LogLevelError  LogLevel = "error"
	LogLevelDPanic LogLevel = "dpanic"
	LogLevelPanic  LogLevel = "panic"
	LogLevelFatal  LogLevel = "fatal"
)

type LogEntry struct {
	Logger    string         `json:"logger"`
	Level     LogLevel       `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type LoggerLevel struct {
	Name           string `json:"name"`
	Level          string `json:"level,omitempty"`
	EffectiveLevel string `json:"effectiveLevel"`
}
