package contracts

import "github.com/psdstocks-cloud/creo-cache/internal/domain"

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type MessageResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type WarmResponse struct {
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Report    domain.WarmReport `json:"report"`
}

type WarmRunsResponse struct {
	Runs []domain.WarmReport `json:"runs"`
}
