// Package route решает, какой экран открыть по тапу на уведомление.
// Чистое отображение payload → намерение навигации: без сети, без паник.
// Payload классифицируется в один из вариантов tagged union, полный match
// по вариантам собирает NavigationIntent как данные; саму навигацию
// выполняет отдельный Dispatcher (оболочка).
package route

import (
	"fmt"

	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
)

// Screen — целевой экран оболочки.
type Screen string

const (
	ScreenReservations Screen = "reservations"
	ScreenClassDetail  Screen = "class_detail"
)

// Prompt — модальный диалог, который экран должен показать при открытии.
type Prompt string

const (
	PromptNone       Prompt = ""
	PromptReschedule Prompt = "reschedule"
	PromptCancelled  Prompt = "cancelled"
)

// NavigationIntent — намерение навигации как данные. Отсутствующие в
// payload поля приходят пустыми строками — экран показывает что есть.
type NavigationIntent struct {
	Screen Screen            `json:"screen"`
	Prompt Prompt            `json:"prompt,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Dispatcher выполняет навигацию (оболочка поверх WebSocket).
type Dispatcher interface {
	Navigate(intent NavigationIntent)
}

// Варианты tagged union. Порядок классификации — приоритет из контракта:
// известный тип > classId > reservationId > ничего.
type tapEvent interface{ isTapEvent() }

type reminderTap struct{ reservationID string }

type rescheduledTap struct {
	reservationID, classID string
	oldFecha, oldHora      string
	newFecha, newHora      string
	name, sede             string
}

type cancelledTap struct{ name, sede, fecha, hora string }

type classTap struct{ classID string }

type reservationTap struct{ reservationID string }

type unknownTap struct{}

func (reminderTap) isTapEvent()    {}
func (rescheduledTap) isTapEvent() {}
func (cancelledTap) isTapEvent()   {}
func (classTap) isTapEvent()       {}
func (reservationTap) isTapEvent() {}
func (unknownTap) isTapEvent()     {}

// classify разбирает payload в вариант. Никогда не ошибается: непонятный
// payload — это unknownTap, а не сбой.
func classify(data map[string]string) tapEvent {
	switch data["type"] {
	case model.NotificationClassReminder:
		return reminderTap{reservationID: data["reservationId"]}
	case model.NotificationClassRescheduled:
		return rescheduledTap{
			reservationID: data["reservationId"],
			classID:       data["classId"],
			oldFecha:      data["oldFecha"],
			oldHora:       data["oldHora"],
			newFecha:      data["newFecha"],
			newHora:       data["newHora"],
			name:          data["name"],
			sede:          data["sede"],
		}
	case model.NotificationClassCancelled:
		return cancelledTap{
			name:  data["name"],
			sede:  data["sede"],
			fecha: data["fecha"],
			hora:  data["hora"],
		}
	}
	if id := data["classId"]; id != "" {
		return classTap{classID: id}
	}
	if id := data["reservationId"]; id != "" {
		return reservationTap{reservationID: id}
	}
	return unknownTap{}
}

// Decide возвращает намерение навигации и признак "навигация нужна".
// Match по вариантам полный; unknownTap — единственный no-op.
func Decide(data map[string]string) (NavigationIntent, bool) {
	switch ev := classify(data).(type) {
	case reminderTap:
		return NavigationIntent{
			Screen: ScreenReservations,
			Params: map[string]string{"highlight": ev.reservationID},
		}, true
	case rescheduledTap:
		return NavigationIntent{
			Screen: ScreenReservations,
			Prompt: PromptReschedule,
			Params: map[string]string{
				"reservationId": ev.reservationID,
				"classId":       ev.classID,
				"oldDate":       ev.oldFecha,
				"oldTime":       ev.oldHora,
				"newDate":       ev.newFecha,
				"newTime":       ev.newHora,
				"className":     ev.name,
				"sede":          ev.sede,
			},
		}, true
	case cancelledTap:
		return NavigationIntent{
			Screen: ScreenReservations,
			Prompt: PromptCancelled,
			Params: map[string]string{
				"className": ev.name,
				"sede":      ev.sede,
				"date":      ev.fecha,
				"time":      ev.hora,
			},
		}, true
	case classTap:
		return NavigationIntent{
			Screen: ScreenClassDetail,
			Params: map[string]string{
				"classId":          ev.classID,
				"fromNotification": "true",
			},
		}, true
	case reservationTap:
		return NavigationIntent{Screen: ScreenReservations}, true
	case unknownTap:
		return NavigationIntent{}, false
	default:
		// classify не возвращает других вариантов
		return NavigationIntent{}, false
	}
}

// TapHandler — связка router + dispatcher. Любая внутренняя ошибка
// логируется, пользователь остаётся на текущем экране.
type TapHandler struct {
	nav Dispatcher
}

func NewTapHandler(nav Dispatcher) *TapHandler {
	return &TapHandler{nav: nav}
}

// HandleTap обрабатывает тап по payload уведомления. Возвращает намерение,
// если навигация была выполнена.
func (h *TapHandler) HandleTap(data map[string]string) (intent NavigationIntent, navigated bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("route: tap handling panic: %v", r)
			intent, navigated = NavigationIntent{}, false
		}
	}()
	intent, ok := Decide(data)
	if !ok {
		return NavigationIntent{}, false
	}
	if h.nav == nil {
		return NavigationIntent{}, false
	}
	h.nav.Navigate(intent)
	return intent, true
}

// String для логов.
func (i NavigationIntent) String() string {
	if i.Prompt != PromptNone {
		return fmt.Sprintf("%s(%s)", i.Screen, i.Prompt)
	}
	return string(i.Screen)
}
