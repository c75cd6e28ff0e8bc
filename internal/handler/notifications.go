package handler

import (
	"net/http"

	"github.com/ritmofit/internal/notify"
)

type NotificationHandler struct {
	dispatcher *notify.Dispatcher
}

func NewNotificationHandler(d *notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: d}
}

// Refresh — POST /api/notifications/refresh: немедленный опрос бэкенда вне
// расписания (оболочка дёргает при возвращении на передний план). Возвращает
// число записей, которые отдал сервер.
func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	count := h.dispatcher.FetchAndDispatch(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"fetched": count})
}
