package model

import "strconv"

// Типы уведомлений, которые генерирует бэкенд. Нераспознанный тип
// обрабатывается как generic.
const (
	NotificationClassReminder    = "class_reminder"
	NotificationClassRescheduled = "class_rescheduled"
	NotificationClassCancelled   = "class_cancelled"
	NotificationGeneric          = "generic"
)

// PendingNotification — запись из GET /notifications, ожидающая доставки.
// Создаётся на бэкенде, выбирается агентом один раз; бэкенд сам отвечает
// за то, чтобы не отдать её повторно.
type PendingNotification struct {
	ID    int64             `json:"id"`
	Type  string            `json:"type"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// LocalNotification — то, что агент показывает локально: исходный payload
// плюс id записи и тип, подмешанные в data.
type LocalNotification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// Localize собирает локальное уведомление из серверной записи.
func (n *PendingNotification) Localize() LocalNotification {
	data := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		data[k] = v
	}
	data["notificationId"] = strconv.FormatInt(n.ID, 10)
	data["type"] = n.Type
	return LocalNotification{Title: n.Title, Body: n.Body, Data: data}
}
