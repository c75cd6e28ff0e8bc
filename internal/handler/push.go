package handler

import (
	"net/http"

	"github.com/ritmofit/internal/notify"
)

type PushHandler struct {
	push *notify.WebPush
}

func NewPushHandler(push *notify.WebPush) *PushHandler {
	return &PushHandler{push: push}
}

// VAPIDKey — GET /api/push/key: публичный ключ для подписки оболочки.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":    h.push.Enabled(),
		"public_key": h.push.PublicKey(),
	})
}

// Subscribe — POST /api/push/subscribe: тело — PushSubscription браузера.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var sub notify.Subscription
	if !decodeBody(w, r, &sub) {
		return
	}
	if err := h.push.Subscribe(r.Context(), sub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

// Unsubscribe — DELETE /api/push/subscribe {endpoint}.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	if err := h.push.Unsubscribe(r.Context(), req.Endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
