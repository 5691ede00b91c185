package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clan-manager/app"
	"clan-manager/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// run owns the runtime so that it is closed on every return path before main
// exits.
func run() error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, app.Options{RunMigrations: true})
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer rt.Close()

	server := &http.Server{
		Addr:              rt.Config.Addr(),
		Handler:           rt.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Long enough for the progressive delay plus an image upload.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	rt.Logger.Info("server_start", map[string]any{"addr": server.Addr, "env": rt.Config.Env})
	return serve(ctx, server, rt.Logger)
}

// serve runs server until it fails or ctx is cancelled, then shuts it down.
func serve(ctx context.Context, server *http.Server, logger *observability.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", map[string]any{"error": err.Error()})
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("server_shutdown", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server_shutdown_failed", map[string]any{"error": err.Error()})
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
