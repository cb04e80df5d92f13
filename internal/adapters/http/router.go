package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", handler.ready)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/cache/health", handler.getHealth)
		r.Get("/cache/stats", handler.getStats)
		r.Post("/cache/clear", handler.clearCache)
		r.Post("/cache/warm", handler.warmCache)
		r.Get("/cache/warm/runs", handler.listWarmRuns)
		r.Get("/cache/warm/runs/{runID}", handler.getWarmRun)
	})
	return r
}
