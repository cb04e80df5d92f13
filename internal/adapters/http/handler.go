package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/psdstocks-cloud/creo-cache/internal/application"
	"github.com/psdstocks-cloud/creo-cache/internal/contracts"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapDomainError(err)
	writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health(r.Context())
	status := http.StatusOK
	if health.Status == domain.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.service.Health(r.Context()).Status == domain.HealthUnhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	clearedAt, err := h.service.Clear(r.Context(), requestIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts.MessageResponse{
		Message:   "cache cleared",
		Timestamp: clearedAt.Format(time.RFC3339),
	})
}

func (h *Handler) warmCache(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Warm(r.Context(), domain.TriggerManual)
	if err != nil && !errors.Is(err, domain.ErrCancelled) {
		h.fail(w, r, err)
		return
	}
	message := "cache warming completed"
	if report.Cancelled {
		message = "cache warming cancelled"
	} else if len(report.Failed) > 0 {
		message = "cache warming completed with failures"
	}
	writeJSON(w, http.StatusOK, contracts.WarmResponse{
		Message:   message,
		Timestamp: report.FinishedAt.Format(time.RFC3339),
		Report:    report,
	})
}

func (h *Handler) listWarmRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer", requestIDFromContext(r.Context()))
			return
		}
		limit = n
	}
	runs, err := h.service.WarmRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts.WarmRunsResponse{Runs: runs})
}

func (h *Handler) getWarmRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.WarmRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
