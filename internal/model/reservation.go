package model

import "time"

// Статусы брони. Значения совпадают с тем, что отдаёт бэкенд.
const (
	ReservationConfirmed = "confirmada"
	ReservationCancelled = "cancelada"
	ReservationExpired   = "expirada"
)

// Статусы посещения.
const (
	AttendancePending     = "pending"
	AttendanceAttended    = "attended"
	AttendanceNotAttended = "not_attended"
)

// Окна действий относительно начала занятия. Отмена закрывается за час до
// старта; QR-чекин открыт от 30 минут до начала и до 30 минут после.
const (
	CancelCutoff    = 60 * time.Minute
	CheckInOpensBy  = 30 * time.Minute
	CheckInClosesIn = 30 * time.Minute
)

// ReservationView — бронь вместе с данными занятия, как её видит оболочка.
// Поля "можно отменить"/"открыт чекин"/"просрочена" всегда вычисляются от
// текущего времени и никогда не хранятся.
type ReservationView struct {
	ID              int64     `json:"id"`
	ClassID         int64     `json:"class_id"`
	Status          string    `json:"status"`
	Attendance      string    `json:"attendance"`
	ClassName       string    `json:"class_name"`
	Discipline      string    `json:"discipline"`
	Sede            string    `json:"sede"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// CanCancel — бронь подтверждена и до старта ещё больше часа.
func (r *ReservationView) CanCancel(now time.Time) bool {
	return r.Status == ReservationConfirmed && now.Before(r.StartsAt.Add(-CancelCutoff))
}

// CheckInOpen — подтверждённая бронь без отметки посещения в окне чекина.
func (r *ReservationView) CheckInOpen(now time.Time) bool {
	if r.Status != ReservationConfirmed || r.Attendance != AttendancePending {
		return false
	}
	open := r.StartsAt.Add(-CheckInOpensBy)
	close := r.StartsAt.Add(CheckInClosesIn)
	return !now.Before(open) && !now.After(close)
}

// Expired — окно чекина прошло, а посещение так и не отмечено.
func (r *ReservationView) Expired(now time.Time) bool {
	return r.Status == ReservationConfirmed &&
		r.Attendance == AttendancePending &&
		now.After(r.StartsAt.Add(CheckInClosesIn))
}

// EffectiveStatus — статус для отображения: просроченные подтверждённые
// брони показываются как expirada.
func (r *ReservationView) EffectiveStatus(now time.Time) string {
	if r.Expired(now) {
		return ReservationExpired
	}
	return r.Status
}

// Fecha возвращает дату занятия в формате YYYY-MM-DD (как в payload уведомлений).
func (r *ReservationView) Fecha() string {
	return r.StartsAt.Format("2006-01-02")
}

// Hora возвращает время начала в формате HH:MM.
func (r *ReservationView) Hora() string {
	return r.StartsAt.Format("15:04")
}

// HistoryEntry — посещение из истории участника.
type HistoryEntry struct {
	ReservationID int64     `json:"reservation_id"`
	ClassID       int64     `json:"class_id"`
	ClassName     string    `json:"class_name"`
	Discipline    string    `json:"discipline"`
	Sede          string    `json:"sede"`
	StartsAt      time.Time `json:"starts_at"`
	Attendance    string    `json:"attendance"`
	Rating        int       `json:"rating,omitempty"`
}
