package app

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/config"
	"mgmtd/internal/infra/mgmt"
	"mgmtd/internal/infra/telemetry"
)

// Application runs the service and its management endpoints.
type Application struct {
	ctx        context.Context
	serve      ServeConfig
	logger     *zap.Logger
	logging    Logging
	loader     *config.Loader
	state      *ConfigState
	management *mgmt.Management
	tracing    *telemetry.Tracing
	service    http.Handler
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Context     context.Context
	ServeConfig ServeConfig
	Logging     Logging
	Loader      *config.Loader
	ConfigState *ConfigState
	Management  *mgmt.Management
	Tracing     *telemetry.Tracing
	Service     http.Handler
}

func NewApplication(opts ApplicationOptions) *Application {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Application{
		ctx:        ctx,
		serve:      opts.ServeConfig,
		logger:     opts.Logging.Logger,
		logging:    opts.Logging,
		loader:     opts.Loader,
		state:      opts.ConfigState,
		management: opts.Management,
		tracing:    opts.Tracing,
		service:    opts.Service,
	}
}

// Handlers returns the root handler for the service server and, when the
// management endpoints run on their own listener, the management handler.
func (a *Application) Handlers() (http.Handler, http.Handler) {
	if a.management == nil {
		return a.tracing.Middleware(a.service), nil
	}
	cfg := a.state.Current().Management
	if cfg.ListenAddress == "" && a.serve.ManagementListener == nil {
		return a.tracing.Middleware(a.management.DeployStandard(a.service)), nil
	}

	root := a.service
	if cfg.ExternalURL != "" {
		mux := http.NewServeMux()
		mux.Handle("GET "+a.management.Prefix(), mgmt.LocationHandler(cfg.ExternalURL))
		mux.Handle("/", a.service)
		root = mux
	}
	return a.tracing.Middleware(a.management.Wrap(root)), a.tracing.Middleware(a.management.Handler())
}

// Run serves until the context is cancelled or a server fails.
func (a *Application) Run() error {
	cfg := a.state.Current()
	a.logger.Info("configuration loaded",
		zap.String("version", VersionString()),
		zap.String("config", a.serve.ConfigPath),
		zap.Bool("management", a.management != nil),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout())
		defer done()
		if err := a.tracing.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	serviceHandler, managementHandler := a.Handlers()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := func(opts telemetry.HTTPServerOptions) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telemetry.StartHTTPServer(ctx, opts, a.logger); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancel()
			}
		}()
	}

	start(telemetry.HTTPServerOptions{
		Name:            "service",
		Addr:            cfg.Service.ListenAddress,
		Handler:         serviceHandler,
		Listener:        a.serve.ServiceListener,
		ShutdownTimeout: cfg.Service.ShutdownTimeout(),
	})
	if managementHandler != nil {
		start(telemetry.HTTPServerOptions{
			Name:            "management",
			Addr:            cfg.Management.ListenAddress,
			Handler:         managementHandler,
			Listener:        a.serve.ManagementListener,
			ShutdownTimeout: cfg.Service.ShutdownTimeout(),
		})
	}
	if a.serve.ConfigPath != "" && a.loader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher := config.NewWatcher(a.loader, a.serve.ConfigPath, a.logger)
			if err := watcher.Run(ctx, a.applyReload); err != nil {
				a.logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}

// applyReload applies the parts of a reloaded config that can change at
// runtime: log levels and parameters.
func (a *Application) applyReload(cfg domain.Config, err error) {
	if err != nil {
		a.state.Failed(err)
		return
	}
	prev := a.state.Current()
	if err := a.logging.Levels.Configure(cfg.Logging.Level, cfg.Logging.Levels); err != nil {
		a.logger.Warn("log levels not applied", telemetry.EventField(telemetry.EventConfigReload), zap.Error(err))
		a.state.Failed(err)
		return
	}
	// Loggers dropped from the file fall back to the root level.
	for name := range prev.Logging.Levels {
		if _, ok := cfg.Logging.Levels[name]; !ok && name != domain.DefaultRootLoggerName {
			if err := a.logging.Levels.SetLevel(name, "inherit"); err != nil {
				a.logger.Warn("log level not reset",
					telemetry.EventField(telemetry.EventConfigReload),
					telemetry.LoggerNameField(name),
					zap.Error(err),
				)
			}
		}
	}

	if prev.Service.ListenAddress != cfg.Service.ListenAddress ||
		prev.Management.ListenAddress != cfg.Management.ListenAddress ||
		prev.Management.Path != cfg.Management.Path {
		a.logger.Warn("listener changes take effect after restart", telemetry.EventField(telemetry.EventConfigReload))
	}
	a.state.Update(cfg)
	a.logger.Info("configuration reloaded", telemetry.EventField(telemetry.EventConfigReload), zap.String("config", a.serve.ConfigPath))
}
