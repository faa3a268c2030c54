package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"toggl-ingest/internal/domain"
	"toggl-ingest/internal/usecase"
)

type runner interface {
	RunOnce(ctx context.Context) (usecase.Report, error)
}

// HTTPServer returns a configured http.Server that exposes an endpoint to
// trigger ingestion runs. Call ListenAndServe on the returned server in a
// goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(a.log, newMux(a)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info("http trigger server configured", slog.String("addr", addr))
	return srv
}

func newMux(run runner) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// /ingest?timeout=5m
	mux.HandleFunc("/ingest", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx := req.Context()
		if tStr := req.URL.Query().Get("timeout"); tStr != "" {
			if d, err := time.ParseDuration(tStr); err == nil && d > 0 {
				var cancel func()
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
		}

		rep, err := run.RunOnce(ctx)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrTransport) {
				status = http.StatusBadGateway
			}
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "error",
				"phase":  rep.Phase,
				"error":  err.Error(),
			})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(reportBody(rep))
	})
	return mux
}

func reportBody(rep usecase.Report) map[string]any {
	body := map[string]any{
		"status":             "ok",
		"phase":              rep.Phase,
		"summary":            rep.String(),
		"fetched":            rep.Fetched,
		"inserted":           rep.Inserted,
		"skipped":            rep.Skipped,
		"failed":             rep.Failed,
		"flagged":            rep.Flagged,
		"workspaces_created": rep.WorkspacesCreated,
		"projects_created":   rep.ProjectsCreated,
	}
	if rep.ParseErrors != nil {
		msgs := make([]string, 0, len(rep.ParseErrors.Errors))
		for _, e := range rep.ParseErrors.Errors {
			msgs = append(msgs, e.Error())
		}
		body["parse_errors"] = msgs
	}
	return body
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
