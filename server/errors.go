package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/ingestion"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrEmptyQuestion),
		errors.Is(err, core.ErrInvalidIdentifier),
		errors.Is(err, core.ErrInvalidPagination),
		errors.Is(err, core.ErrUnsupportedPayload),
		errors.Is(err, ingestion.ErrNotPDF):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRetrievalTimeout),
		errors.Is(err, core.ErrGenerationTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrServiceUnavailable),
		errors.Is(err, ingestion.ErrSupervisorBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrMalformedResponse),
		errors.Is(err, core.ErrEmbeddingCountMismatch),
		errors.Is(err, core.ErrDimensionMismatch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
