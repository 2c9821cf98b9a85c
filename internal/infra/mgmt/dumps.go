package mgmt

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
	"mgmtd/internal/infra/telemetry/diagnostics"
)

// namedValuesHandler renders a sorted list of name/value pairs.
type namedValuesHandler struct {
	title  string
	values func() []domain.NamedValue
	logger *zap.Logger
}

func (h *namedValuesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	values := h.values()
	switch Negotiate(r) {
	case TypeJSON:
		writeJSON(w, http.StatusOK, values)
	case TypeHTML:
		writeHTML(w, h.logger, namedValuesTemplate, struct {
			Title  string
			Values []domain.NamedValue
		}{Title: h.title, Values: values})
	default:
		var sb strings.Builder
		for _, v := range values {
			sb.WriteString(v.Name)
			sb.WriteString(": ")
			sb.WriteString(v.Value)
			sb.WriteByte('\n')
		}
		writeText(w, http.StatusOK, sb.String())
	}
}

// NewEnvHandler serves the process environment.
func NewEnvHandler(redact bool, logger *zap.Logger) http.Handler {
	return &namedValuesHandler{
		title:  "Environment Variables",
		logger: loggerOrNop(logger),
		values: func() []domain.NamedValue {
			return EnvVariables(os.Environ(), redact)
		},
	}
}

// EnvVariables converts KEY=VALUE pairs into sorted rows.
func EnvVariables(environ []string, redact bool) []domain.NamedValue {
	out := make([]domain.NamedValue, 0, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if redact {
			value = diagnostics.RedactValue(name, value)
		}
		out = append(out, domain.NamedValue{Name: name, Value: value})
	}
	sortNamedValues(out)
	return out
}

// NewSysPropsHandler serves runtime and build properties of the process.
func NewSysPropsHandler(logger *zap.Logger) http.Handler {
	return &namedValuesHandler{
		title:  "System Properties",
		logger: loggerOrNop(logger),
		values: SystemProperties,
	}
}

// SystemProperties reports runtime, process and build information.
func SystemProperties() []domain.NamedValue {
	props := map[string]string{
		"go.version":         runtime.Version(),
		"go.os":              runtime.GOOS,
		"go.arch":            runtime.GOARCH,
		"go.compiler":        runtime.Compiler,
		"runtime.cpus":       strconv.Itoa(runtime.NumCPU()),
		"runtime.maxprocs":   strconv.Itoa(runtime.GOMAXPROCS(0)),
		"runtime.goroutines": strconv.Itoa(runtime.NumGoroutine()),
		"process.pid":        strconv.Itoa(os.Getpid()),
		"process.args":       strings.Join(os.Args, " "),
	}
	if host, err := os.Hostname(); err == nil {
		props["process.hostname"] = host
	}
	if exe, err := os.Executable(); err == nil {
		props["process.executable"] = exe
	}
	if wd, err := os.Getwd(); err == nil {
		props["process.cwd"] = wd
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		props["build.path"] = info.Path
		props["build.main.path"] = info.Main.Path
		props["build.main.version"] = info.Main.Version
		for _, setting := range info.Settings {
			props["build.setting."+setting.Key] = setting.Value
		}
		for _, dep := range info.Deps {
			version := dep.Version
			if dep.Replace != nil {
				version += " => " + dep.Replace.Path + " " + dep.Replace.Version
			}
			props["build.dep."+dep.Path] = version
		}
	}

	out := make([]domain.NamedValue, 0, len(props))
	for name, value := range props {
		out = append(out, domain.NamedValue{Name: name, Value: value})
	}
	sortNamedValues(out)
	return out
}

func sortNamedValues(values []domain.NamedValue) {
	sort.Slice(values, func(i, j int) bool { return values[i].Name < values[j].Name })
}

// ParametersSource returns the current parameters of the service.
type ParametersSource func() any

type parametersHandler struct {
	source ParametersSource
	logger *zap.Logger
}

// NewParametersHandler serves the value returned by source.
func NewParametersHandler(source ParametersSource, logger *zap.Logger) http.Handler {
	return &parametersHandler{source: source, logger: loggerOrNop(logger)}
}

func (h *parametersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	value := h.source()
	switch Negotiate(r) {
	case TypeJSON:
		writeJSON(w, http.StatusOK, value)
	case TypeHTML:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(value); err != nil {
			telemetry.LoggerWithRequest(r.Context(), h.logger).Error("encode parameters failed",
				telemetry.EndpointField(domain.EndpointParameters),
				zap.Error(err),
			)
			http.Error(w, "failed to encode parameters", http.StatusInternalServerError)
			return
		}
		writeHTML(w, h.logger, preTemplate, struct {
			Title string
			Body  string
		}{Title: "Parameters", Body: buf.String()})
	default:
		raw, err := yaml.Marshal(value)
		if err != nil {
			telemetry.LoggerWithRequest(r.Context(), h.logger).Error("encode parameters failed",
				telemetry.EndpointField(domain.EndpointParameters),
				zap.Error(err),
			)
			http.Error(w, "failed to encode parameters", http.StatusInternalServerError)
			return
		}
		writeText(w, http.StatusOK, string(raw))
	}
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

var namedValuesTemplate = template.Must(template.New("namedvalues").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
<table>
<thead><tr><th>Name</th><th>Value</th></tr></thead>
<tbody>
{{- range .Values}}
<tr><td>{{.Name}}</td><td>{{.Value}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

var preTemplate = template.Must(template.New("pre").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
<pre>{{.Body}}</pre>
</body>
</html>
`))
