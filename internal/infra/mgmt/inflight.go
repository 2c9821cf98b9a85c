package mgmt

import (
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
	"mgmtd/internal/infra/telemetry/diagnostics"
)

// InFlightTracker records the requests currently being served. Each request
// gets its own key, so pipelined or multiplexed requests sharing a
// connection do not overwrite each other.
type InFlightTracker struct {
	mu       sync.Mutex
	requests map[string]domain.InFlightEntry
	metrics  domain.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewInFlightTracker(metrics domain.Metrics, logger *zap.Logger) *InFlightTracker {
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InFlightTracker{
		requests: make(map[string]domain.InFlightEntry),
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Track registers each request for the duration of next.
func (t *InFlightTracker) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := t.begin(r)
		defer t.end(key)
		next.ServeHTTP(w, r)
	})
}

func (t *InFlightTracker) begin(r *http.Request) string {
	key := telemetry.NewRequestID()
	requestID, _ := telemetry.RequestIDFromContext(r.Context())
	traceID, spanID := telemetry.TraceSpanFromContext(r.Context())
	entry := domain.InFlightEntry{
		ID:             key,
		RequestID:      requestID,
		StartTimestamp: t.now(),
		Method:         r.Method,
		LocalAddress:   localAddress(r),
		RemoteAddress:  r.RemoteAddr,
		AbsoluteURI:    absoluteURL(r),
		Query:          r.URL.RawQuery,
		TraceID:        traceID,
		SpanID:         spanID,
	}

	t.mu.Lock()
	t.requests[key] = entry
	count := len(t.requests)
	t.mu.Unlock()

	t.metrics.SetInFlight(count)
	return key
}

func (t *InFlightTracker) end(key string) {
	t.mu.Lock()
	delete(t.requests, key)
	count := len(t.requests)
	t.mu.Unlock()

	t.metrics.SetInFlight(count)
}

// Len returns the number of requests in flight.
func (t *InFlightTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// Snapshot returns the in-flight requests ordered by start time.
func (t *InFlightTracker) Snapshot() []domain.InFlightEntry {
	now := t.now()
	t.mu.Lock()
	out := make([]domain.InFlightEntry, 0, len(t.requests))
	for _, entry := range t.requests {
		entry.SecondsSoFar = now.Sub(entry.StartTimestamp).Seconds()
		out = append(out, entry)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTimestamp.Equal(out[j].StartTimestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTimestamp.Before(out[j].StartTimestamp)
	})
	return out
}

func (t *InFlightTracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entries := t.Snapshot()
	switch Negotiate(r) {
	case TypeJSON:
		writeJSON(w, http.StatusOK, entries)
	case TypeHTML:
		writeHTML(w, t.logger, inFlightTemplate, entries)
	default:
		var sb strings.Builder
		for _, entry := range entries {
			fmt.Fprintf(&sb, "%s\t%.3fs\t%s %s\t%s\n",
				entry.StartTimestamp.UTC().Format(time.RFC3339),
				entry.SecondsSoFar,
				entry.Method,
				diagnostics.TruncateString(entry.AbsoluteURI, 200),
				entry.RemoteAddress,
			)
		}
		writeText(w, http.StatusOK, sb.String())
	}
}

func localAddress(r *http.Request) string {
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok && addr != nil {
		return addr.String()
	}
	return ""
}

var inFlightTemplate = template.Must(template.New("inflight").Parse(`<html>
<head><title>In Flight Requests</title></head>
<body>
<table>
<thead><tr><th>Start</th><th>Seconds</th><th>Method</th><th>URI</th><th>Local</th><th>Remote</th><th>Request ID</th></tr></thead>
<tbody>
{{- range .}}
<tr><td>{{.StartTimestamp.UTC.Format "2006-01-02T15:04:05.000Z07:00"}}</td><td>{{printf "%.3f" .SecondsSoFar}}</td><td>{{.Method}}</td><td>{{.AbsoluteURI}}</td><td>{{.LocalAddress}}</td><td>{{.RemoteAddress}}</td><td>{{.RequestID}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))
