package mgmt

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", TypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", TypePlain+"; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// writeHTML renders into a buffer first so a template failure still yields
// a clean 500 instead of a truncated page.
func writeHTML(w http.ResponseWriter, logger *zap.Logger, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logger.Error("render html failed", zap.String("template", tmpl.Name()), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", TypeHTML+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeError maps err to an HTTP status via its domain code.
func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// sortHeaderRows orders rows case-insensitively by name.
func sortHeaderRows(rows []headerRow) {
	sort.Slice(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
}
