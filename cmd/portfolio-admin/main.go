package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/portfolio-admin/pkg/portfolio/api"
	"github.com/tendant/portfolio-admin/pkg/portfolio/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Portfolio admin server failed", "err", err)
		os.Exit(1)
	}
}

// run serves until SIGINT or SIGTERM, or until the listener fails. The
// runtime is closed on every path.
func run() error {
	// Load configuration from .env and the environment
	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}
	logger := newLogger(serverConfig.Environment)
	slog.SetDefault(logger)

	ctx := context.Background()
	rt, err := serverConfig.Build(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Error("Failed to close runtime", "err", err)
		}
	}()

	handler, err := routes(rt)
	if err != nil {
		return fmt.Errorf("failed to set up routes: %w", err)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: handler,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Portfolio admin server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"storage", serverConfig.StorageURL,
			"bucket", rt.Services.Images.Blobs().Bucket(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	}
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
	slog.Info("Server exiting")
	return nil
}

func newLogger(environment string) *slog.Logger {
	if environment == "development" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func routes(rt *config.Runtime) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	if err := api.Mount(r, rt.Services, rt.Router); err != nil {
		return nil, err
	}
	return r, nil
}
