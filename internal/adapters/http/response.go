package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/psdstocks-cloud/creo-cache/internal/contracts"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, contracts.ErrorResponse{
		Status: "error",
		Error:  contracts.ErrorPayload{Code: code, Message: message, RequestID: requestID},
	})
}

func mapDomainError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrEmptyRegistry):
		return http.StatusConflict, "no_warm_jobs"
	case errors.Is(err, domain.ErrBackendTimeout):
		return http.StatusGatewayTimeout, "backend_timeout"
	case errors.Is(err, domain.ErrBackendUnreachable):
		return http.StatusServiceUnavailable, "backend_unreachable"
	case errors.Is(err, domain.ErrCancelled):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
