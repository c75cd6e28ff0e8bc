package route

import (
	"reflect"
	"testing"

	"github.com/ritmofit/internal/model"
)

type fakeDispatcher struct {
	intents []NavigationIntent
}

func (f *fakeDispatcher) Navigate(intent NavigationIntent) {
	f.intents = append(f.intents, intent)
}

func TestDecideReminder(t *testing.T) {
	intent, ok := Decide(map[string]string{
		"type":          model.NotificationClassReminder,
		"reservationId": "42",
	})
	if !ok {
		t.Fatalf("expected navigation for reminder tap")
	}
	if intent.Screen != ScreenReservations {
		t.Fatalf("screen = %q, want %q", intent.Screen, ScreenReservations)
	}
	if intent.Prompt != PromptNone {
		t.Fatalf("prompt = %q, want none", intent.Prompt)
	}
	if intent.Params["highlight"] != "42" {
		t.Fatalf("highlight = %q, want 42", intent.Params["highlight"])
	}
}

func TestDecideRescheduledCarriesAllFields(t *testing.T) {
	intent, ok := Decide(map[string]string{
		"type":          model.NotificationClassRescheduled,
		"reservationId": "7",
		"classId":       "3",
		"oldFecha":      "2026-09-01",
		"oldHora":       "18:00",
		"newFecha":      "2026-09-02",
		"newHora":       "19:30",
		"name":          "Funcional",
		"sede":          "Palermo",
	})
	if !ok {
		t.Fatalf("expected navigation for rescheduled tap")
	}
	if intent.Screen != ScreenReservations || intent.Prompt != PromptReschedule {
		t.Fatalf("got %s/%s, want reservations/reschedule", intent.Screen, intent.Prompt)
	}
	want := map[string]string{
		"reservationId": "7",
		"classId":       "3",
		"oldDate":       "2026-09-01",
		"oldTime":       "18:00",
		"newDate":       "2026-09-02",
		"newTime":       "19:30",
		"className":     "Funcional",
		"sede":          "Palermo",
	}
	if !reflect.DeepEqual(intent.Params, want) {
		t.Fatalf("params = %v, want %v", intent.Params, want)
	}
}

func TestDecideRescheduledMissingFieldsAreEmpty(t *testing.T) {
	intent, ok := Decide(map[string]string{
		"type":    model.NotificationClassRescheduled,
		"classId": "3",
	})
	if !ok {
		t.Fatalf("expected navigation")
	}
	if intent.Params["oldDate"] != "" || intent.Params["newTime"] != "" {
		t.Fatalf("missing payload fields must map to empty strings, got %v", intent.Params)
	}
}

func TestDecideCancelled(t *testing.T) {
	intent, ok := Decide(map[string]string{
		"type":  model.NotificationClassCancelled,
		"name":  "Yoga",
		"sede":  "Belgrano",
		"fecha": "2026-09-03",
		"hora":  "10:00",
	})
	if !ok {
		t.Fatalf("expected navigation for cancelled tap")
	}
	if intent.Prompt != PromptCancelled {
		t.Fatalf("prompt = %q, want cancelled", intent.Prompt)
	}
	want := map[string]string{
		"className": "Yoga",
		"sede":      "Belgrano",
		"date":      "2026-09-03",
		"time":      "10:00",
	}
	if !reflect.DeepEqual(intent.Params, want) {
		t.Fatalf("params = %v, want %v", intent.Params, want)
	}
}

func TestDecideClassIDWithoutType(t *testing.T) {
	intent, ok := Decide(map[string]string{"classId": "15"})
	if !ok {
		t.Fatalf("expected navigation for classId-only payload")
	}
	if intent.Screen != ScreenClassDetail {
		t.Fatalf("screen = %q, want class_detail", intent.Screen)
	}
	if intent.Params["classId"] != "15" || intent.Params["fromNotification"] != "true" {
		t.Fatalf("params = %v", intent.Params)
	}
}

func TestDecideKnownTypeWinsOverClassID(t *testing.T) {
	// classId присутствует, но известный тип имеет приоритет.
	intent, ok := Decide(map[string]string{
		"type":          model.NotificationClassReminder,
		"classId":       "15",
		"reservationId": "9",
	})
	if !ok {
		t.Fatalf("expected navigation")
	}
	if intent.Screen != ScreenReservations {
		t.Fatalf("known type must win over classId, got screen %q", intent.Screen)
	}
}

func TestDecideReservationIDOnly(t *testing.T) {
	intent, ok := Decide(map[string]string{"reservationId": "8"})
	if !ok {
		t.Fatalf("expected navigation")
	}
	if intent.Screen != ScreenReservations || intent.Prompt != PromptNone {
		t.Fatalf("got %s/%s", intent.Screen, intent.Prompt)
	}
}

func TestDecideUnknownPayloadIsNoOp(t *testing.T) {
	for _, data := range []map[string]string{
		nil,
		{},
		{"type": "promo_of_the_week"},
		{"somethingElse": "x"},
	} {
		if intent, ok := Decide(data); ok {
			t.Fatalf("payload %v must not navigate, got %v", data, intent)
		}
	}
}

func TestHandleTapDispatches(t *testing.T) {
	disp := &fakeDispatcher{}
	h := NewTapHandler(disp)
	intent, navigated := h.HandleTap(map[string]string{"classId": "5"})
	if !navigated {
		t.Fatalf("expected navigation")
	}
	if len(disp.intents) != 1 || !reflect.DeepEqual(disp.intents[0], intent) {
		t.Fatalf("dispatcher got %v, handler returned %v", disp.intents, intent)
	}
}

func TestHandleTapUnknownDoesNotDispatch(t *testing.T) {
	disp := &fakeDispatcher{}
	h := NewTapHandler(disp)
	if _, navigated := h.HandleTap(map[string]string{}); navigated {
		t.Fatalf("unknown payload must not navigate")
	}
	if len(disp.intents) != 0 {
		t.Fatalf("dispatcher must not be called, got %v", disp.intents)
	}
}

func TestHandleTapNilDispatcher(t *testing.T) {
	h := NewTapHandler(nil)
	if _, navigated := h.HandleTap(map[string]string{"classId": "5"}); navigated {
		t.Fatalf("nil dispatcher must not report navigation")
	}
}
