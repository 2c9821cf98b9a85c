package mgmt

import (
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
	"mgmtd/internal/infra/telemetry/diagnostics"
)

// AccessLog captures the most recent requests served by the wrapped handler
// and renders them on the accesslog endpoint.
type AccessLog struct {
	buffer  *diagnostics.RingBuffer[*domain.AccessRecord]
	metrics domain.Metrics
	logger  *zap.Logger
	redact  bool
	now     func() time.Time
}

func NewAccessLog(capacity int, metrics domain.Metrics, logger *zap.Logger) (*AccessLog, error) {
	buffer, err := diagnostics.NewRingBuffer[*domain.AccessRecord](capacity)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInvalidArgument, "mgmt.NewAccessLog", err)
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessLog{
		buffer:  buffer,
		metrics: metrics,
		logger:  logger,
		redact:  true,
		now:     time.Now,
	}, nil
}

// Records returns a consistent copy of the captured requests, oldest first.
func (a *AccessLog) Records() []domain.AccessRecordView {
	records := a.buffer.Snapshot()
	views := make([]domain.AccessRecordView, 0, len(records))
	for _, record := range records {
		view := record.View()
		if a.redact {
			view.RequestHeaders = diagnostics.RedactHeader(view.RequestHeaders)
			view.ResponseHeaders = diagnostics.RedactHeader(view.ResponseHeaders)
		}
		views = append(views, view)
	}
	return views
}

// Capacity is the number of requests retained.
func (a *AccessLog) Capacity() int {
	return a.buffer.Capacity()
}

// Capture records every request passing through next.
func (a *AccessLog) Capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := a.now()
		requestID, _ := telemetry.RequestIDFromContext(r.Context())
		record := &domain.AccessRecord{
			Timestamp:      start,
			Method:         r.Method,
			URL:            absoluteURL(r),
			Proto:          r.Proto,
			RemoteAddr:     r.RemoteAddr,
			RequestID:      requestID,
			RequestHeaders: r.Header.Clone(),
		}
		a.buffer.Add(record)
		a.metrics.ObserveAccessRecord()

		var body *countingBody
		if r.Body != nil && r.Body != http.NoBody {
			body = &countingBody{ReadCloser: r.Body}
			r.Body = body
		}
		rec := newStatusRecorder(w)
		defer func() {
			end := a.now()
			var read int64
			if body != nil {
				read = body.read.Load()
			}
			record.Complete(end, read, rec.Status(), rec.written, rec.Header().Clone())
			a.metrics.ObserveRequest(r.Method, rec.Status(), end.Sub(start))
			telemetry.LoggerWithRequest(r.Context(), a.logger).Debug("request served",
				telemetry.MethodField(r.Method),
				telemetry.PathField(r.URL.Path),
				telemetry.StatusField(rec.Status()),
				telemetry.DurationField(end.Sub(start)),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

func (a *AccessLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	records := a.Records()
	switch Negotiate(r) {
	case TypeJSON:
		writeJSON(w, http.StatusOK, records)
	case TypeHTML:
		rows := make([]accessLogRow, 0, len(records))
		for i, record := range records {
			rows = append(rows, newAccessLogRow(i+1, record))
		}
		writeHTML(w, a.logger, accessLogTemplate, accessLogPage{Capacity: a.Capacity(), Rows: rows})
	default:
		var sb strings.Builder
		for _, record := range records {
			sb.WriteString(CommonLogLine(record))
			sb.WriteByte('\n')
		}
		writeText(w, http.StatusOK, sb.String())
	}
}

// CommonLogLine formats a record in combined log format.
func CommonLogLine(record domain.AccessRecordView) string {
	status, written := "-", "-"
	if record.Completed {
		status = fmt.Sprint(record.StatusCode)
		written = fmt.Sprint(record.BytesWritten)
	}
	referrer := headerValue(record.RequestHeaders, "Referrer")
	if referrer == "-" {
		referrer = headerValue(record.RequestHeaders, "Referer")
	}
	return fmt.Sprintf("%s - - [%s] \"%s %s %s\" %s %s \"%s\" \"%s\"",
		clientHost(record.RemoteAddr),
		record.Timestamp.UTC().Format(http.TimeFormat),
		record.Method,
		record.URL,
		protoOrDash(record.Proto),
		status,
		written,
		referrer,
		headerValue(record.RequestHeaders, "User-Agent"),
	)
}

func headerValue(h http.Header, key string) string {
	if value := h.Get(key); value != "" {
		return value
	}
	return "-"
}

func clientHost(remoteAddr string) string {
	if remoteAddr == "" {
		return "-"
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func protoOrDash(proto string) string {
	switch proto {
	case "HTTP/1.0", "HTTP/1.1", "HTTP/2.0", "HTTP/3.0":
		return proto
	default:
		return "-"
	}
}

func absoluteURL(r *http.Request) string {
	return baseURL(r) + r.URL.RequestURI()
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

type accessLogRow struct {
	ID              int
	Time            string
	Method          string
	URL             string
	Completed       bool
	Status          int
	DurationMs      int64
	BytesWritten    int64
	RequestHeaders  []headerRow
	ResponseHeaders []headerRow
}

type headerRow struct {
	Name   string
	Values string
}

func newAccessLogRow(id int, record domain.AccessRecordView) accessLogRow {
	return accessLogRow{
		ID:              id,
		Time:            record.Timestamp.UTC().Format(time.RFC3339Nano),
		Method:          record.Method,
		URL:             record.URL,
		Completed:       record.Completed,
		Status:          record.StatusCode,
		DurationMs:      record.Duration().Milliseconds(),
		BytesWritten:    record.BytesWritten,
		RequestHeaders:  sortedHeaders(record.RequestHeaders),
		ResponseHeaders: sortedHeaders(record.ResponseHeaders),
	}
}

func sortedHeaders(h http.Header) []headerRow {
	rows := make([]headerRow, 0, len(h))
	for key, values := range h {
		rows = append(rows, headerRow{Name: key, Values: strings.Join(values, "\n")})
	}
	sortHeaderRows(rows)
	return rows
}

type accessLogPage struct {
	Capacity int
	Rows     []accessLogRow
}

var accessLogTemplate = template.Must(template.New("accesslog").Parse(`<html>
<head>
<title>Access Log</title>
<style>table.top,th.top,td.top { border: 1px solid black; border-collapse: collapse; padding-left: 10px; padding-right: 10px; } td.number { text-align: right; }</style>
<script type="text/javascript">
function flip(id) {
  var el = document.getElementById(id);
  if (el) {
    el.style.display = el.style.display == 'none' ? '' : 'none';
  }
}
</script>
</head>
<body>
<p>Showing {{len .Rows}} requests, keeping up to {{.Capacity}}.</p>
<table style="border: 1px solid black; border-collapse: collapse;" class="top">
<thead><tr><th class="top">Time</th><th class="top">Method</th><th class="top">URL</th><th class="top">Status</th><th class="top">Duration</th><th class="top">Bytes Written</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr id="row-{{.ID}}" onclick="flip('headers-{{.ID}}')"><td class="top">{{.Time}}</td><td class="top">{{.Method}}</td><td class="top">{{.URL}}</td>
{{- if .Completed}}<td class="top">{{.Status}}</td><td class="number top">{{.DurationMs}} ms</td><td class="number top">{{.BytesWritten}} B</td>
{{- else}}<td class="top"></td><td class="top"></td><td class="top"></td>{{end}}</tr>
<tr id="headers-{{.ID}}" style="display: none;"><td colspan="6"><table style="width: 100%;">
<thead><tr><th style="width: 50%;">Request Headers</th><th style="width: 50%;">Response Headers</th></tr></thead>
<tr><td style="width: 50%; vertical-align: top;"><table style="width: 100%;">
{{- range .RequestHeaders}}<tr><td><pre>{{.Name}}</pre></td><td><pre>{{.Values}}</pre></td></tr>{{end}}
</table></td><td style="width: 50%; vertical-align: top;"><table style="width: 100%;">
{{- range .ResponseHeaders}}<tr><td><pre>{{.Name}}</pre></td><td><pre>{{.Values}}</pre></td></tr>{{end}}
</table></td></tr>
</table></td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))
