package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/showroom/internal/domain"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// statusFor maps a domain error to an HTTP status and a message safe to show
// to clients.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented, "not implemented"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "inventory feed unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError logs err with the operation name and attributes, then writes a
// generic JSON error body.
func (s *Server) writeError(w http.ResponseWriter, err error, op string, attrs ...any) {
	status, msg := statusFor(err)
	args := append([]any{"op", op, "status", status, "error", err}, attrs...)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", args...)
	} else {
		s.logger.Warn("request rejected", args...)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	return dec.Decode(v)
}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
