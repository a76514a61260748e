package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, entity.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, entity.ErrDispatch):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceErr hides the details of unexpected errors from the caller.
func (h *Handler) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", reqField(r), zap.Error(err))
		writeErr(w, code, "internal error")
		return
	}
	writeErr(w, code, err.Error())
}
