package model

import (
	"testing"
	"time"
)

func confirmed(startsAt time.Time) ReservationView {
	return ReservationView{
		Status:     ReservationConfirmed,
		Attendance: AttendancePending,
		StartsAt:   startsAt,
	}
}

func TestCanCancel(t *testing.T) {
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	r := confirmed(start)

	if !r.CanCancel(start.Add(-2 * time.Hour)) {
		t.Fatalf("2h before start must allow cancellation")
	}
	if r.CanCancel(start.Add(-CancelCutoff)) {
		t.Fatalf("exactly 1h before start the window is closed")
	}
	if r.CanCancel(start.Add(-30 * time.Minute)) {
		t.Fatalf("30m before start must not allow cancellation")
	}

	cancelled := r
	cancelled.Status = ReservationCancelled
	if cancelled.CanCancel(start.Add(-2 * time.Hour)) {
		t.Fatalf("cancelled reservation cannot be cancelled again")
	}
}

func TestCheckInOpen(t *testing.T) {
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	r := confirmed(start)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"too early", start.Add(-CheckInOpensBy - time.Minute), false},
		{"window opens", start.Add(-CheckInOpensBy), true},
		{"at start", start, true},
		{"window closes", start.Add(CheckInClosesIn), true},
		{"too late", start.Add(CheckInClosesIn + time.Minute), false},
	}
	for _, tc := range cases {
		if got := r.CheckInOpen(tc.now); got != tc.want {
			t.Fatalf("%s: CheckInOpen = %v, want %v", tc.name, got, tc.want)
		}
	}

	attended := r
	attended.Attendance = AttendanceAttended
	if attended.CheckInOpen(start) {
		t.Fatalf("already attended must close check-in")
	}
}

func TestExpiredAndEffectiveStatus(t *testing.T) {
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	r := confirmed(start)

	inWindow := start.Add(CheckInClosesIn)
	if r.Expired(inWindow) {
		t.Fatalf("not expired while the window is open")
	}
	if got := r.EffectiveStatus(inWindow); got != ReservationConfirmed {
		t.Fatalf("EffectiveStatus = %q, want confirmada", got)
	}

	after := start.Add(CheckInClosesIn + time.Minute)
	if !r.Expired(after) {
		t.Fatalf("past window without attendance must be expired")
	}
	if got := r.EffectiveStatus(after); got != ReservationExpired {
		t.Fatalf("EffectiveStatus = %q, want expirada", got)
	}

	attended := r
	attended.Attendance = AttendanceAttended
	if attended.Expired(after) {
		t.Fatalf("attended reservation never expires")
	}
}

func TestLocalizeMergesIDAndType(t *testing.T) {
	n := PendingNotification{
		ID:    123,
		Type:  NotificationClassReminder,
		Title: "Tu clase empieza pronto",
		Data:  map[string]string{"reservationId": "7"},
	}
	local := n.Localize()
	if local.Data["notificationId"] != "123" {
		t.Fatalf("notificationId = %q", local.Data["notificationId"])
	}
	if local.Data["type"] != NotificationClassReminder {
		t.Fatalf("type = %q", local.Data["type"])
	}
	if local.Data["reservationId"] != "7" {
		t.Fatalf("payload fields must be preserved")
	}
	// Исходная запись не мутирует.
	if _, ok := n.Data["notificationId"]; ok {
		t.Fatalf("Localize must not mutate the source map")
	}
}
