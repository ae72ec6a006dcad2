package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"simulado-service/internal/domain"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP classes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func (a *API) fail(w http.ResponseWriter, operation string, err error) {
	status, result := statusFor(err)
	a.metrics.outcome(operation, result)

	message := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", zap.String("operation", operation), zap.Error(err))
		message = "request failed"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func (a *API) succeed(w http.ResponseWriter, operation string, status int, v any) {
	a.metrics.outcome(operation, "ok")
	writeJSON(w, status, v)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalid("invalid request body: %v", err)
	}
	return nil
}
