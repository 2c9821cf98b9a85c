package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/mgmt"
	"mgmtd/internal/infra/telemetry"
)

func newTestApplication(t *testing.T, cfg domain.Config, serve ServeConfig) *Application {
	t.Helper()
	logging := NewLogging(LoggingConfig{})
	management, err := mgmt.New(mgmt.Options{Path: cfg.Management.Path, Levels: logging.Levels})
	require.NoError(t, err)
	return NewApplication(ApplicationOptions{
		Context:     context.Background(),
		ServeConfig: serve,
		Logging:     logging,
		ConfigState: NewConfigState(cfg),
		Management:  management,
		Service:     NewServiceHandler(logging),
	})
}

func TestApplicationHandlers_SingleServer(t *testing.T) {
	application := newTestApplication(t, domain.Config{}, ServeConfig{})

	service, management := application.Handlers()
	require.NotNil(t, service)
	assert.Nil(t, management)

	rec := httptest.NewRecorder()
	service.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manage/up", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UP\n", rec.Body.String())
}

func TestApplicationHandlers_SeparateServer(t *testing.T) {
	cfg := domain.Config{Management: domain.ManagementConfig{
		ListenAddress: "127.0.0.1:9001",
		ExternalURL:   "http://ops:9001/manage",
	}}
	application := newTestApplication(t, cfg, ServeConfig{})

	service, management := application.Handlers()
	require.NotNil(t, management)

	rec := httptest.NewRecorder()
	service.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manage", nil))
	assert.JSONEq(t, `{"location":"http://ops:9001/manage"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	service.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manage/up", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	management.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manage/up", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplicationApplyReload(t *testing.T) {
	application := newTestApplication(t, domain.Config{Logging: domain.LoggingConfig{Level: "info"}}, ServeConfig{})
	application.logging.Named("service")

	application.applyReload(domain.Config{
		Logging:    domain.LoggingConfig{Level: "warn", Levels: map[string]string{"service": "debug"}},
		Parameters: map[string]any{"feature": true},
	}, nil)

	assert.Equal(t, zapcore.WarnLevel, application.logging.Levels.Effective(domain.DefaultRootLoggerName))
	assert.Equal(t, zapcore.DebugLevel, application.logging.Levels.Effective("service"))
	assert.Equal(t, map[string]any{"feature": true}, application.state.Parameters())
	require.NoError(t, application.state.Check(context.Background()))

	application.applyReload(domain.Config{Logging: domain.LoggingConfig{Level: "warn"}}, nil)
	assert.Equal(t, zapcore.WarnLevel, application.logging.Levels.Effective("service"))

	application.applyReload(domain.Config{}, errors.New("yaml: line 3"))
	require.Error(t, application.state.Check(context.Background()))
	assert.Equal(t, map[string]any{}, application.state.Parameters())
}

func TestApplicationApplyReload_WarnsWhenLevelNotReset(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging := NewLogging(LoggingConfig{Logger: zap.New(core)})
	application := NewApplication(ApplicationOptions{
		Context: context.Background(),
		Logging: logging,
		// "ghost" is in the previous file but was never registered.
		ConfigState: NewConfigState(domain.Config{Logging: domain.LoggingConfig{Level: "info", Levels: map[string]string{"ghost": "debug"}}}),
		Service:     NewServiceHandler(logging),
	})

	application.applyReload(domain.Config{Logging: domain.LoggingConfig{Level: "info"}}, nil)

	warnings := logs.FilterMessage("log level not reset").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, "ghost", warnings[0].ContextMap()[telemetry.FieldLoggerName])
	assert.Equal(t, telemetry.EventConfigReload, warnings[0].ContextMap()[telemetry.FieldEvent])
	require.NoError(t, application.state.Check(context.Background()))
}

func TestApplicationHandlers_TracingFeedsInFlight(t *testing.T) {
	application := newTestApplication(t, domain.Config{}, ServeConfig{})
	tracing, err := telemetry.NewTracing(context.Background(), telemetry.TracingOptions{Enabled: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracing.Shutdown(context.Background()) })
	application.tracing = tracing

	service, _ := application.Handlers()
	req := httptest.NewRequest(http.MethodGet, "/manage/inflight?_fmt=json", nil)
	req.Header.Set("traceparent", "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	rec := httptest.NewRecorder()
	service.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []domain.InFlightEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", entries[0].TraceID)
	assert.NotEmpty(t, entries[0].SpanID)
	assert.Equal(t, rec.Header().Get(telemetry.RequestIDHeader), entries[0].RequestID)
}
