// Package handler — локальный HTTP API агента для оболочки терминала.
// Все ответы — JSON; ошибки бэкенда пробрасываются с их статусом и текстом,
// транспортные сбои отдаются как 503 и переключают оболочку в offline.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAPIError отображает ошибку API-клиента в HTTP-ответ оболочке:
// транспортный сбой — 503 (оболочка уйдёт в offline-экран), прикладная
// ошибка бэкенда — её статус и текст как есть.
func writeAPIError(w http.ResponseWriter, err error) {
	if errors.Is(err, api.ErrBackendUnreachable) {
		writeError(w, http.StatusServiceUnavailable, "sin conexión con el servidor")
		return
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	logger.Errorf("handler: unexpected error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
