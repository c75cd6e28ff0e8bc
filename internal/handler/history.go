package handler

import (
	"errors"
	"net/http"

	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/cache"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
)

type HistoryHandler struct {
	api   *api.Client
	cache *cache.Cache
}

func NewHistoryHandler(apiClient *api.Client, c *cache.Cache) *HistoryHandler {
	return &HistoryHandler{api: apiClient, cache: c}
}

// List — GET /api/history?from=&to= (границы YYYY-MM-DD). Живой ответ
// дописывается в кеш; при транспортном сбое отдаётся кеш.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	entries, err := h.api.History(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, api.ErrBackendUnreachable) && h.cache != nil {
			cached, cacheErr := h.cache.History(r.Context(), from, to)
			if cacheErr == nil {
				writeJSON(w, http.StatusOK, map[string]any{"cached": true, "history": cached})
				return
			}
			logger.Errorf("history: read cache: %v", cacheErr)
		}
		writeAPIError(w, err)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	if h.cache != nil {
		if err := h.cache.MergeHistory(r.Context(), entries); err != nil {
			logger.Errorf("history: merge cache: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cached": false, "history": entries})
}
