package mgmt

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
)

const maxLevelBodyBytes = 4 << 10

// RecentLogs exposes the most recently captured log entries.
type RecentLogs interface {
	Snapshot() []domain.LogEntry
}

// LoggingView is the JSON document served by the logging endpoint.
type LoggingView struct {
	Loggers map[string]domain.LoggerLevel `json:"loggers"`
	Recent  []domain.LogEntry             `json:"recent"`
}

type levelRequest struct {
	Level string `json:"level"`
}

// LoggingHandler reports and changes runtime log levels.
type LoggingHandler struct {
	levels  *telemetry.LevelRegistry
	recent  RecentLogs
	metrics domain.Metrics
	logger  *zap.Logger
}

func NewLoggingHandler(levels *telemetry.LevelRegistry, recent RecentLogs, metrics domain.Metrics, logger *zap.Logger) *LoggingHandler {
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &LoggingHandler{
		levels:  levels,
		recent:  recent,
		metrics: metrics,
		logger:  loggerOrNop(logger),
	}
}

func (h *LoggingHandler) View() LoggingView {
	view := LoggingView{
		Loggers: make(map[string]domain.LoggerLevel),
		Recent:  []domain.LogEntry{},
	}
	for _, item := range h.levels.Levels() {
		view.Loggers[item.Name] = item
	}
	if h.recent != nil {
		view.Recent = h.recent.Snapshot()
	}
	return view
}

func (h *LoggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch Negotiate(r) {
	case TypeJSON:
		writeJSON(w, http.StatusOK, h.View())
	case TypeHTML:
		writeHTML(w, h.logger, loggingTemplate, struct {
			Levels []domain.LoggerLevel
			Recent []domain.LogEntry
			Names  []string
		}{
			Levels: h.levels.Levels(),
			Recent: h.View().Recent,
			Names:  levelNames,
		})
	default:
		var sb strings.Builder
		for _, item := range h.levels.Levels() {
			level := item.Level
			if level == "" {
				level = "(" + item.EffectiveLevel + ")"
			}
			fmt.Fprintf(&sb, "%s: %s\n", item.Name, level)
		}
		writeText(w, http.StatusOK, sb.String())
	}
}

// ServeLevel handles PUT {logger} with a {"level": "..."} body.
func (h *LoggingHandler) ServeLevel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("logger")
	logger := telemetry.LoggerWithRequest(r.Context(), h.logger).With(telemetry.LoggerNameField(name))

	var req levelRequest
	body := http.MaxBytesReader(w, r.Body, maxLevelBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("log level request rejected", telemetry.EventField(telemetry.EventLevelRejected), zap.Error(err))
		writeError(w, domain.E(domain.CodeInvalidArgument, "mgmt.SetLevel", "invalid request body", domain.ErrInvalidRequest))
		return
	}
	if strings.TrimSpace(req.Level) == "" {
		writeError(w, domain.E(domain.CodeInvalidArgument, "mgmt.SetLevel", "level is required", domain.ErrInvalidLogLevel))
		return
	}

	if err := h.levels.SetLevel(name, req.Level); err != nil {
		logger.Warn("log level request rejected",
			telemetry.EventField(telemetry.EventLevelRejected),
			telemetry.LevelField(req.Level),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	h.metrics.ObserveLevelChange(name)
	logger.Info("log level changed", telemetry.EventField(telemetry.EventLevelChange), telemetry.LevelField(req.Level))
	writeJSON(w, http.StatusOK, h.View())
}

var levelNames = []string{"debug", "info", "warn", "error", "inherit"}

var loggingTemplate = template.Must(template.New("logging").Parse(`<html>
<head>
<title>Log Levels</title>
<script>
function setLevel(logger, level) {
  fetch("logging/" + encodeURIComponent(logger), {
    method: "PUT",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({level: level})
  }).then(function() { location.reload(); });
}
</script>
</head>
<body>
<table>
<thead><tr><th>Logger</th><th>Level</th><th>Effective Level</th><th></th></tr></thead>
<tbody>
{{- range .Levels}}
{{- $logger := .Name}}
<tr><td>{{.Name}}</td><td>{{.Level}}</td><td>{{.EffectiveLevel}}</td><td>
{{- range $.Names}}<button onclick="setLevel({{$logger}}, {{.}})">{{.}}</button>{{end -}}
</td></tr>
{{- end}}
</tbody>
</table>
<h2>Recent</h2>
<table>
<thead><tr><th>Time</th><th>Level</th><th>Logger</th><th>Message</th></tr></thead>
<tbody>
{{- range .Recent}}
<tr><td>{{.Timestamp.Format "2006-01-02T15:04:05.000Z07:00"}}</td><td>{{.Level}}</td><td>{{.Logger}}</td><td>{{.Message}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))
