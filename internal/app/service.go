package app

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mgmtd/internal/infra/telemetry"
)

const (
	maxEchoBytes    = 1 << 20
	maxSleepRequest = time.Minute
)

// NewServiceHandler builds the demo service whose traffic the management
// endpoints report on.
func NewServiceHandler(logging Logging) http.Handler {
	logger := logging.Named("service").With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceService))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "mgmtd demo service\n")
	})

	mux.HandleFunc("GET /hello/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		telemetry.LoggerWithRequest(r.Context(), logger).Debug("greeting", zap.String("name", name))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Hello, "+name+"!\n")
	})

	mux.HandleFunc("POST /echo", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEchoBytes))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		_, _ = w.Write(body)
	})

	// GET /sleep?duration=2s holds the request open, which makes it visible
	// on the inflight endpoint.
	mux.HandleFunc("GET /sleep", func(w http.ResponseWriter, r *http.Request) {
		duration, err := time.ParseDuration(r.URL.Query().Get("duration"))
		if err != nil || duration < 0 || duration > maxSleepRequest {
			http.Error(w, "duration must be between 0s and 1m", http.StatusBadRequest)
			return
		}
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			_, _ = io.WriteString(w, "slept "+duration.String()+"\n")
		case <-r.Context().Done():
			telemetry.LoggerWithRequest(r.Context(), logger).Info("sleep cancelled", zap.Error(r.Context().Err()))
		}
	})

	return mux
}
