package handler

import (
	"net/http"
	"strings"

	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/session"
)

type ProfileHandler struct {
	api     *api.Client
	session *session.Manager
}

func NewProfileHandler(apiClient *api.Client, sess *session.Manager) *ProfileHandler {
	return &ProfileHandler{api: apiClient, session: sess}
}

// Me — GET /api/me. Бэкенд недоступен — отдаём сохранённый профиль, если
// он есть: экран профиля работает offline в режиме чтения.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.api.Me(r.Context())
	if err != nil {
		if cached, cacheErr := h.session.User(r.Context()); cacheErr == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe — PUT /api/me {name, photo_url}.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		PhotoURL string `json:"photo_url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	user, err := h.api.UpdateMe(r.Context(), req.Name, req.PhotoURL)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	// Обновляем локальную копию профиля; токен не трогаем.
	token, tokenErr := h.session.Token(r.Context())
	if tokenErr == nil && token != "" {
		if err := h.session.Save(r.Context(), token, user); err != nil {
			logger.Errorf("profile: refresh cached user: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, user)
}
