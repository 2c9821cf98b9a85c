package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mgmtd/internal/app"
)

type rootOptions struct {
	configPath string
	devLogs    bool
	logger     *zap.Logger
}

func main() {
	var opts rootOptions
	logger, err := buildLogger(&opts)
	if err != nil {
		panic(err)
	}
	opts.logger = logger

	root := newRootCmd(&opts)
	if err := root.Execute(); err != nil {
		opts.logger.Fatal("command failed", zap.Error(err))
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:          "mgmtd",
		Short:        "Demo HTTP service with runtime management endpoints",
		Version:      app.VersionString(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			applyRootFlagBindings(cmd.Flags(), opts)
			if !opts.devLogs {
				return nil
			}
			log, err := buildLogger(opts)
			if err != nil {
				return err
			}
			opts.logger = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to config file (defaults only when empty)")
	root.PersistentFlags().BoolVar(&opts.devLogs, "dev", false, "human readable development logs")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the service with the management endpoints mounted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logger)
			return application.Serve(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without running servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(opts.logger)
			return application.ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func applyRootFlagBindings(flags *pflag.FlagSet, opts *rootOptions) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config":
			opts.configPath, _ = flags.GetString("config")
		case "dev":
			opts.devLogs, _ = flags.GetBool("dev")
		}
	})
}

// buildLogger builds the process logger. It opens at debug so the runtime
// level registry, configured from the logging section, decides what is kept.
func buildLogger(opts *rootOptions) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.devLogs {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return cfg.Build()
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
