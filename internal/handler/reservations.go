package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/cache"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
)

type ReservationHandler struct {
	api   *api.Client
	cache *cache.Cache
}

func NewReservationHandler(apiClient *api.Client, c *cache.Cache) *ReservationHandler {
	return &ReservationHandler{api: apiClient, cache: c}
}

// List — GET /api/reservations. Успешный ответ API целиком замещает кеш;
// при транспортном сбое отдаётся кеш с пометкой cached=true.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.Reservations(r.Context())
	if err != nil {
		if errors.Is(err, api.ErrBackendUnreachable) && h.cache != nil {
			cached, cacheErr := h.cache.Reservations(r.Context())
			if cacheErr == nil {
				writeJSON(w, http.StatusOK, map[string]any{"cached": true, "reservations": cached})
				return
			}
			logger.Errorf("reservations: read cache: %v", cacheErr)
		}
		writeAPIError(w, err)
		return
	}
	if list == nil {
		list = []model.ReservationView{}
	}
	if h.cache != nil {
		if err := h.cache.ReplaceReservations(r.Context(), list); err != nil {
			logger.Errorf("reservations: refresh cache: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cached": false, "reservations": list})
}

// Create — POST /api/reservations {class_id}.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClassID int64 `json:"class_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ClassID <= 0 {
		writeError(w, http.StatusBadRequest, "class_id required")
		return
	}
	res, err := h.api.Reserve(r.Context(), req.ClassID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Cancel — DELETE /api/reservations/{id}. Окно отмены проверяет бэкенд;
// агент не дублирует проверку, чтобы не разойтись с сервером по часам.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}
	if err := h.api.CancelReservation(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": model.ReservationCancelled})
}
