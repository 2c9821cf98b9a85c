package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mgmtd/internal/domain"
)

func traceIDsHandler(got *RequestMeta) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = BuildRequestMeta(r.Context(), "req")
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTracingMiddlewareStartsServerSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracing, err := NewTracing(context.Background(), TracingOptions{Enabled: true}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracing.Shutdown(context.Background()) })

	var meta RequestMeta
	rec := httptest.NewRecorder()
	tracing.Middleware(traceIDsHandler(&meta)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello/a", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotEmpty(t, meta.TraceID)
	require.NotEmpty(t, meta.SpanID)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET", spans[0].Name())
	assert.Equal(t, meta.TraceID, spans[0].SpanContext().TraceID().String())
	assert.Contains(t, spans[0].Attributes(), attribute.String("url.path", "/hello/a"))
}

func TestTracingMiddlewareContinuesIncomingTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracing, err := NewTracing(context.Background(), TracingOptions{Enabled: true}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracing.Shutdown(context.Background()) })

	var meta RequestMeta
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	tracing.Middleware(traceIDsHandler(&meta)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "0123456789abcdef0123456789abcdef", meta.TraceID)
	assert.NotEqual(t, "0123456789abcdef", meta.SpanID)
	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "0123456789abcdef", recorder.Ended()[0].Parent().SpanID().String())
}

func TestTracingDisabledPassesThrough(t *testing.T) {
	tracing, err := NewTracing(context.Background(), TracingOptions{})
	require.NoError(t, err)
	assert.False(t, tracing.Enabled())

	var meta RequestMeta
	tracing.Middleware(traceIDsHandler(&meta)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, meta.TraceID)
	assert.NoError(t, tracing.Shutdown(context.Background()))
}

func TestTracingStdoutExporter(t *testing.T) {
	var out bytes.Buffer
	tracing, err := NewTracing(context.Background(), TracingOptions{Enabled: true, Exporter: TraceExporterStdout, Writer: &out})
	require.NoError(t, err)

	tracing.Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/echo", nil))
	require.NoError(t, tracing.Shutdown(context.Background()))

	assert.Contains(t, out.String(), `"Name":"POST"`)
	assert.Contains(t, out.String(), "/echo")
}

func TestTracingUnknownExporter(t *testing.T) {
	_, err := NewTracing(context.Background(), TracingOptions{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestTracingOTLPExporter(t *testing.T) {
	tracing, err := NewTracing(context.Background(), TracingOptions{
		Enabled:  true,
		Exporter: TraceExporterOTLP,
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
	})
	require.NoError(t, err)
	assert.True(t, tracing.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tracing.Shutdown(ctx)
}
