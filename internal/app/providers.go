package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/config"
	"mgmtd/internal/infra/mgmt"
	"mgmtd/internal/infra/telemetry"
	"mgmtd/internal/infra/telemetry/diagnostics"
)

func NewConfigLoader(logger *zap.Logger) *config.Loader {
	return config.NewLoader(logger)
}

// NewConfig loads the config file and applies its log levels.
func NewConfig(ctx context.Context, serve ServeConfig, loader *config.Loader, logging Logging) (domain.Config, error) {
	cfg, err := loader.Load(ctx, serve.ConfigPath)
	if err != nil {
		return domain.Config{}, err
	}
	if err := logging.Levels.Configure(cfg.Logging.Level, cfg.Logging.Levels); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(cfg domain.Config, registry *prometheus.Registry) domain.Metrics {
	if !cfg.Metrics.Enabled {
		return telemetry.NewNoopMetrics()
	}
	return telemetry.NewPrometheusMetrics(registry)
}

func NewTracing(ctx context.Context, cfg domain.Config) (*telemetry.Tracing, error) {
	return telemetry.NewTracing(ctx, telemetry.TracingOptions{
		Enabled:  cfg.Tracing.Enabled,
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	})
}

// RecentLogs is the capture buffer behind the logging endpoint.
type RecentLogs = diagnostics.AsyncBuffer[domain.LogEntry]

func NewRecentLogs(ctx context.Context, logging Logging, cfg domain.Config) (*RecentLogs, error) {
	buf, err := diagnostics.NewAsyncBuffer[domain.LogEntry](cfg.Management.RecentLogCapacity, domain.DefaultRecentLogQueueSize)
	if err != nil {
		return nil, err
	}
	diagnostics.CaptureLogs(ctx, logging.Broadcaster.Subscribe(ctx), buf)
	return buf, nil
}

// NewManagement builds the management endpoints, or returns nil when they are
// disabled.
func NewManagement(
	cfg domain.Config,
	state *ConfigState,
	logging Logging,
	registry *prometheus.Registry,
	metrics domain.Metrics,
	recent *RecentLogs,
) (*mgmt.Management, error) {
	if !cfg.Management.Enabled {
		return nil, nil
	}
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = registry
	}
	return mgmt.New(mgmt.Options{
		Path:              cfg.Management.Path,
		Endpoints:         cfg.Management.Endpoints,
		AccessLogCapacity: cfg.Management.AccessLogCapacity,
		RedactEnv:         cfg.Management.RedactEnv,
		Parameters:        state.Parameters,
		Levels:            logging.Levels,
		RecentLogs:        recent,
		Gatherer:          gatherer,
		HealthChecks: map[string]mgmt.HealthCheck{
			"config": state.Check,
		},
		Metrics: metrics,
		Logger:  logging.Named("mgmt"),
	})
}
