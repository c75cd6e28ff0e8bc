package handler

import (
	"net/http"
	"strings"

	"github.com/ritmofit/internal/api"
)

type CheckInHandler struct {
	api *api.Client
}

func NewCheckInHandler(apiClient *api.Client) *CheckInHandler {
	return &CheckInHandler{api: apiClient}
}

// CheckIn — POST /api/checkin {qr}: содержимое QR-кода со стойки как есть.
// Окно чекина (−30..+30 минут от начала) валидирует бэкенд.
func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QR string `json:"qr"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.QR = strings.TrimSpace(req.QR)
	if req.QR == "" {
		writeError(w, http.StatusBadRequest, "qr required")
		return
	}
	resp, err := h.api.CheckIn(r.Context(), req.QR)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rate — POST /api/ratings {class_id, rating, comment}.
func (h *CheckInHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClassID int64  `json:"class_id"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ClassID <= 0 {
		writeError(w, http.StatusBadRequest, "class_id required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be 1..5")
		return
	}
	if err := h.api.RateClass(r.Context(), req.ClassID, req.Rating, req.Comment); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rated"})
}
