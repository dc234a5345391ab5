package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/storage"
)

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Code: status, Message: message})
}

// Err maps a domain or storage error onto a status code. Anything it does not
// recognise is logged and reported as a 500 without detail.
func Err(w http.ResponseWriter, logger *zap.Logger, err error) {
	var invalid *apperr.ValidationError
	switch {
	case errors.As(err, &invalid):
		Error(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, apperr.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		Error(w, http.StatusConflict, "already exists")
	case errors.Is(err, apperr.ErrForbidden):
		Error(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, apperr.ErrUnauthenticated):
		Error(w, http.StatusUnauthorized, "unauthenticated")
	default:
		if logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("respond: encode payload failed", zap.Error(err))
	}
}
