package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"xtherma_bridge/internal/coordinator"
	"xtherma_bridge/internal/registers"
	"xtherma_bridge/internal/types"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeReadOnly   = "read_only"
	ErrCodeBusy       = "device_busy"
	ErrCodeTimeout    = "timeout"
	ErrCodeDevice     = "device_error"
	ErrCodeInternal   = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // connection may be closed
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// writeWriteError maps a coordinator write error to an HTTP response.
func writeWriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrUnknownKey):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, registers.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, types.ErrReadOnly):
		writeError(w, http.StatusConflict, ErrCodeReadOnly, err.Error())
	case errors.Is(err, types.ErrBusy), errors.Is(err, coordinator.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusy, err.Error())
	case errors.Is(err, types.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, types.ErrNotConnected), errors.Is(err, types.ErrModbus):
		writeError(w, http.StatusBadGateway, ErrCodeDevice, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
