package mgmt

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
)

type Goroutine struct {
	ID          int64   `json:"id"`
	State       string  `json:"state"`
	WaitMinutes int     `json:"waitMinutes,omitempty"`
	Locked      bool    `json:"lockedToThread,omitempty"`
	CreatedBy   string  `json:"createdBy,omitempty"`
	Stack       []Frame `json:"stackTrace"`
}

type Frame struct {
	Function string `json:"function"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

func (f Frame) String() string {
	if f.File == "" {
		return f.Function
	}
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

var goroutineHeader = regexp.MustCompile(`^goroutine (\d+)(?: [^\[]*)?\[(.*)\]:$`)

// ParseGoroutineDump parses the output of the goroutine profile at debug=2.
func ParseGoroutineDump(data []byte) []Goroutine {
	var (
		out     []Goroutine
		current *Goroutine
		// pending holds a function line waiting for its file line.
		pending   *Frame
		inCreated bool
	)
	flush := func() {
		if current != nil {
			out = append(out, *current)
		}
		current, pending, inCreated = nil, nil, false
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := goroutineHeader.FindStringSubmatch(line); m != nil {
			flush()
			id, _ := strconv.ParseInt(m[1], 10, 64)
			current = &Goroutine{ID: id, Stack: []Frame{}}
			parseGoroutineStatus(current, m[2])
			continue
		}
		if current == nil || strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "\t") {
			file, lineNo := parseFileLine(strings.TrimSpace(line))
			if pending != nil && !inCreated {
				pending.File, pending.Line = file, lineNo
				current.Stack = append(current.Stack, *pending)
				pending = nil
			}
			continue
		}
		if pending != nil && !inCreated {
			current.Stack = append(current.Stack, *pending)
			pending = nil
		}
		if rest, ok := strings.CutPrefix(line, "created by "); ok {
			current.CreatedBy = rest
			inCreated = true
			continue
		}
		if strings.HasPrefix(line, "...") {
			continue
		}
		inCreated = false
		pending = &Frame{Function: trimCallArgs(line)}
	}
	if current != nil && pending != nil && !inCreated {
		current.Stack = append(current.Stack, *pending)
	}
	flush()
	return out
}

func parseGoroutineStatus(g *Goroutine, status string) {
	parts := strings.Split(status, ", ")
	g.State = parts[0]
	for _, part := range parts[1:] {
		switch {
		case part == "locked to thread":
			g.Locked = true
		case strings.HasSuffix(part, " minutes"):
			g.WaitMinutes, _ = strconv.Atoi(strings.TrimSuffix(part, " minutes"))
		}
	}
}

func trimCallArgs(line string) string {
	if !strings.HasSuffix(line, ")") {
		return line
	}
	if idx := strings.LastIndex(line, "("); idx > 0 {
		return line[:idx]
	}
	return line
}

func parseFileLine(text string) (string, int) {
	if idx := strings.Index(text, " +0x"); idx >= 0 {
		text = text[:idx]
	}
	idx := strings.LastIndex(text, ":")
	if idx < 0 {
		return text, 0
	}
	line, err := strconv.Atoi(text[idx+1:])
	if err != nil {
		return text, 0
	}
	return text[:idx], line
}

// ThreadDumpHandler serves a dump of all goroutines.
type ThreadDumpHandler struct {
	logger  *zap.Logger
	metrics domain.Metrics
	dump    func() ([]byte, error)
	now     func() time.Time
}

func NewThreadDumpHandler(metrics domain.Metrics, logger *zap.Logger) *ThreadDumpHandler {
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &ThreadDumpHandler{
		logger:  loggerOrNop(logger),
		metrics: metrics,
		dump:    goroutineDump,
		now:     time.Now,
	}
}

func goroutineDump() ([]byte, error) {
	var buf bytes.Buffer
	if err := pprof.Lookup("goroutine").WriteTo(&buf, 2); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *ThreadDumpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := h.dump()
	h.metrics.ObserveDump(domain.EndpointThreads, err)
	if err != nil {
		telemetry.LoggerWithRequest(r.Context(), h.logger).Error("goroutine dump failed",
			telemetry.EventField(telemetry.EventDumpFailure),
			telemetry.EndpointField(domain.EndpointThreads),
			zap.Error(err),
		)
		http.Error(w, "Failed to generate thread dump", http.StatusInternalServerError)
		return
	}

	switch Negotiate(r) {
	case TypeJSON:
		writeJSON(w, http.StatusOK, ParseGoroutineDump(raw))
	case TypeHTML:
		writeHTML(w, h.logger, threadsTemplate, struct {
			Title      string
			Goroutines []Goroutine
		}{
			Title:      ProcessName(os.Args[0]) + " @ " + h.now().UTC().Format(time.RFC3339),
			Goroutines: ParseGoroutineDump(raw),
		})
	default:
		if !boolParam(r, "simple") {
			writeText(w, http.StatusOK, string(raw))
			return
		}
		var sb strings.Builder
		for _, g := range ParseGoroutineDump(raw) {
			fmt.Fprintf(&sb, "goroutine %d\t(%s)", g.ID, g.State)
			for i := 0; i < len(g.Stack) && i < 2; i++ {
				sb.WriteByte('\t')
				sb.WriteString(g.Stack[i].String())
			}
			sb.WriteByte('\n')
		}
		writeText(w, http.StatusOK, sb.String())
	}
}

// boolParam treats a present-but-empty parameter as true.
func boolParam(r *http.Request, name string) bool {
	values, ok := r.URL.Query()[name]
	if !ok || len(values) == 0 {
		return false
	}
	return values[0] == "" || strings.EqualFold(values[0], "true")
}

// ProcessName derives a short process name from the executable path.
func ProcessName(executable string) string {
	name := strings.TrimSpace(executable)
	if idx := strings.Index(name, " "); idx > 0 {
		name = name[:idx]
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.TrimSuffix(name, ".exe")
	if name == "" || name == "." || name == "/" {
		return "heap"
	}
	return name
}

var threadsTemplate = template.Must(template.New("threads").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
<table>
{{- range .Goroutines}}
<tr><td><b>goroutine {{.ID}}</b></td><td>{{.State}}</td><td>{{if .WaitMinutes}}{{.WaitMinutes}} minutes{{end}}</td><td>{{if .Locked}}locked to thread{{end}}</td></tr>
{{- if .CreatedBy}}
<tr><td colspan="4" style="padding-left: 20px;">Created by {{.CreatedBy}}</td></tr>
{{- end}}
<tr><td colspan="4" style="padding-left: 40px;"><pre>
{{- range .Stack}}{{.}}
{{end}}</pre></td></tr>
{{- end}}
</table>
</body>
</html>
`))
