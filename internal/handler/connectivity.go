package handler

import (
	"net/http"

	"github.com/ritmofit/internal/connectivity"
)

type ConnectivityHandler struct {
	tracker *connectivity.Tracker
}

func NewConnectivityHandler(t *connectivity.Tracker) *ConnectivityHandler {
	return &ConnectivityHandler{tracker: t}
}

type connectivityResponse struct {
	connectivity.Snapshot
	State connectivity.State `json:"state"`
}

// State — GET /api/connectivity: текущий снапшот трекера.
func (h *ConnectivityHandler) State(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, connectivityResponse{Snapshot: snap, State: snap.State()})
}

// Retry — POST /api/connectivity/retry: кнопка "Reintentar" offline-экрана.
// Блокирует до исхода пробы и отдаёт новый снапшот.
func (h *ConnectivityHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.tracker.Retry(r.Context())
	snap := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, connectivityResponse{Snapshot: snap, State: snap.State()})
}

// Device — POST /api/connectivity/device: оболочка сообщает состояние сети
// устройства (смена Wi-Fi, потеря линка).
func (h *ConnectivityHandler) Device(w http.ResponseWriter, r *http.Request) {
	var ns connectivity.DeviceNetworkState
	if !decodeBody(w, r, &ns) {
		return
	}
	h.tracker.Evaluate(ns)
	snap := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, connectivityResponse{Snapshot: snap, State: snap.State()})
}
