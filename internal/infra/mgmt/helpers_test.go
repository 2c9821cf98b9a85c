package mgmt

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type dumpCall struct {
	kind string
	err  error
}

type recordingMetrics struct {
	mu           sync.Mutex
	requests     []int
	inFlight     []int
	records      int
	dumps        []dumpCall
	levelChanges []string
}

func (m *recordingMetrics) ObserveRequest(_ string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, status)
}

func (m *recordingMetrics) SetInFlight(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = append(m.inFlight, count)
}

func (m *recordingMetrics) ObserveAccessRecord() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records++
}

func (m *recordingMetrics) ObserveDump(kind string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dumps = append(m.dumps, dumpCall{kind: kind, err: err})
}

func (m *recordingMetrics) ObserveLevelChange(logger string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levelChanges = append(m.levelChanges, logger)
}

// serve runs one request against h and returns the recorded response.
func serve(h http.Handler, method, target string, configure ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, fn := range configure {
		fn(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func accept(value string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Accept", value)
	}
}

func newObserved() (zapcore.Core, *observer.ObservedLogs) {
	return observer.New(zapcore.DebugLevel)
}
