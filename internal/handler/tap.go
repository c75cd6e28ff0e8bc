package handler

import (
	"net/http"

	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/route"
)

type TapHandler struct {
	taps *route.TapHandler
}

func NewTapHandler(taps *route.TapHandler) *TapHandler {
	return &TapHandler{taps: taps}
}

// Tap — POST /api/tap {data: {...}}: оболочка сообщает о тапе по
// уведомлению. Намерение навигации уходит в WebSocket-поток и дублируется в
// ответе; непонятный payload — не ошибка, навигации просто нет.
func (h *TapHandler) Tap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data map[string]string `json:"data"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	intent, navigated := h.taps.HandleTap(req.Data)
	if navigated {
		logger.Infof("tap: navigating to %s", intent)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"navigated": navigated,
		"intent":    intent,
	})
}
