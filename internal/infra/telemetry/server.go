package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mgmtd/internal/domain"
)

type HTTPServerOptions struct {
	Name    string
	Addr    string
	Handler http.Handler
	// Listener, when set, is used instead of listening on Addr.
	Listener        net.Listener
	ShutdownTimeout time.Duration
}

// StartHTTPServer serves opts.Handler until ctx is cancelled, then shuts the
// server down gracefully.
func StartHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Handler == nil {
		return errors.New("http server handler is required")
	}
	name := opts.Name
	if name == "" {
		name = "http"
	}
	addr := opts.Addr
	if addr == "" {
		addr = domain.DefaultServiceListenAddress
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = domain.DefaultShutdownTimeoutSecs * time.Second
	}

	listener := opts.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("%s server failed to start: %w", name, err)
		}
	}

	server := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           opts.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("server", name),
			zap.String("addr", server.Addr),
		)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("%s server failed: %w", name, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.String("server", name), zap.Error(err))
			return err
		}
		logger.Info("http server stopped", zap.String("server", name))
		return nil
	}
}
