package app

import (
	"context"
	"net"

	"go.uber.org/zap"
)

type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
	// ServiceListener and ManagementListener replace the configured listen
	// addresses when set.
	ServiceListener    net.Listener
	ManagementListener net.Listener
}

type ValidateConfig struct {
	ConfigPath string
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger}
}

// Serve runs the service with its management endpoints until ctx is done.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	application, err := InitializeApplication(ctx, cfg, LoggingConfig{Logger: a.logger})
	if err != nil {
		return err
	}
	return application.Run()
}

// ValidateConfig validates the configuration at the provided path.
func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	logging := NewLogging(LoggingConfig{Logger: a.logger})
	loader := NewConfigLoader(logging.Logger)
	loaded, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}
	logging.Logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.String("service", loaded.Service.ListenAddress),
		zap.Bool("management", loaded.Management.Enabled),
	)
	return nil
}
