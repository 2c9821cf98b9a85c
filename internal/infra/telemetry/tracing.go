package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"mgmtd/internal/domain"
)

const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"

	tracerName = "mgmtd/http"
)

type TracingOptions struct {
	Enabled  bool
	Exporter string
	// Writer receives stdout exporter output; os.Stdout when nil.
	Writer io.Writer
	// Endpoint is the OTLP gRPC collector address.
	Endpoint string
	Insecure bool
}

// Tracing starts a server span per request so request metadata, the
// in-flight tracker and logs carry trace and span ids.
type Tracing struct {
	enabled    bool
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	shutdown   func(context.Context) error
}

func NewTracing(ctx context.Context, opts TracingOptions, extra ...sdktrace.TracerProviderOption) (*Tracing, error) {
	if !opts.Enabled {
		return &Tracing{
			provider:   noop.NewTracerProvider(),
			propagator: propagation.TraceContext{},
			shutdown:   func(context.Context) error { return nil },
		}, nil
	}

	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	switch opts.Exporter {
	case "", TraceExporterNone:
	case TraceExporterStdout:
		writer := opts.Writer
		if writer == nil {
			writer = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	case TraceExporterOTLP:
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		if opts.Insecure {
			creds = insecure.NewCredentials()
		}
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithTLSCredentials(creds),
		)
		if err != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	default:
		return nil, domain.E(domain.CodeInvalidArgument, "telemetry.NewTracing", fmt.Sprintf("unknown trace exporter %q", opts.Exporter), domain.ErrInvalidConfig)
	}

	provider := sdktrace.NewTracerProvider(append(providerOpts, extra...)...)
	return &Tracing{
		enabled:    true,
		provider:   provider,
		propagator: propagation.TraceContext{},
		shutdown:   provider.Shutdown,
	}, nil
}

func (t *Tracing) Provider() trace.TracerProvider {
	return t.provider
}

func (t *Tracing) Enabled() bool {
	return t != nil && t.enabled
}

// Middleware wraps next in a server span, continuing an incoming W3C trace
// context when present. Disabled tracing returns next unchanged.
func (t *Tracing) Middleware(next http.Handler) http.Handler {
	if !t.Enabled() {
		return next
	}
	tracer := t.provider.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := t.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
