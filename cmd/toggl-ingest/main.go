package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toggl-ingest/internal/app"
	"toggl-ingest/internal/config"
	"toggl-ingest/internal/domain"
)

func main() {
	os.Exit(run(os.Stdout))
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(logOut io.Writer) int {
	logger := newLogger(logOut, slog.LevelInfo)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		return 1
	}

	// Logger
	logger = newLogger(logOut, cfg.LogLevel)
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// App
	application, err := app.New(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to initialize app", slog.String("error", err.Error()))
		return 1
	}
	defer application.Close()

	if cfg.HTTPAddr != "" {
		return serve(ctx, logger, application, cfg.HTTPAddr)
	}

	rep, err := application.RunOnce(ctx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuth), errors.Is(err, domain.ErrTransport):
			fmt.Fprintf(os.Stderr, "Failed to fetch data: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		}
		return 1
	}
	if rep.ParseErrors != nil {
		for _, e := range rep.ParseErrors.Errors {
			fmt.Fprintf(os.Stderr, "skipped malformed record: %v\n", e)
		}
	}
	fmt.Printf("Data insertion complete: %s.\n", rep)
	return 0
}

func serve(ctx context.Context, logger *slog.Logger, application *app.App, addr string) int {
	srv := application.HTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", slog.String("error", err.Error()))
			return 1
		}
	}
	return 0
}
