package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
)

// reminderLead — за сколько до начала занятия создаётся напоминание.
const reminderLead = time.Hour

// PendingNotifications отдаёт недоставленные записи участника и помечает их
// доставленными в той же транзакции: запись выдаётся ровно один раз.
// Перед выборкой генерируются напоминания о скоро начинающихся занятиях.
func (s *Store) PendingNotifications(ctx context.Context, userID string) ([]model.PendingNotification, error) {
	if err := s.generateReminders(ctx, userID); err != nil {
		logger.Errorf("stub: generate reminders: %v", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("stub: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, type, title, body, data FROM notifications
		WHERE user_id = $1 AND delivered_at IS NULL
		ORDER BY id
		FOR UPDATE SKIP LOCKED`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("stub: fetch notifications: %w", err)
	}
	var list []model.PendingNotification
	for rows.Next() {
		var n model.PendingNotification
		var raw []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &raw); err != nil {
			rows.Close()
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &n.Data); err != nil {
				rows.Close()
				return nil, fmt.Errorf("stub: parse notification data: %w", err)
			}
		}
		list = append(list, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) > 0 {
		ids := make([]int64, len(list))
		for i, n := range list {
			ids[i] = n.ID
		}
		if _, err := tx.Exec(ctx, `UPDATE notifications SET delivered_at = now() WHERE id = ANY($1)`, ids); err != nil {
			return nil, fmt.Errorf("stub: mark delivered: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("stub: commit: %w", err)
	}
	return list, nil
}

func (s *Store) insertNotification(ctx context.Context, userID, typ, title, body string, data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (user_id, type, title, body, data) VALUES ($1, $2, $3, $4, $5)`,
		userID, typ, title, body, raw)
	return err
}

// generateReminders создаёт class_reminder для подтверждённых броней,
// начинающихся в ближайший час. reminded_at защищает от дублей.
func (s *Store) generateReminders(ctx context.Context, userID string) error {
	rows, err := s.pool.Query(ctx, `
		UPDATE reservations SET reminded_at = now()
		WHERE id IN (
			SELECT r.id FROM reservations r JOIN classes c ON c.id = r.class_id
			WHERE r.user_id = $1 AND r.status = $2 AND r.reminded_at IS NULL
			  AND c.starts_at > now() AND c.starts_at <= now() + make_interval(mins => $3)
		)
		RETURNING id, class_id`,
		userID, model.ReservationConfirmed, int(reminderLead.Minutes()))
	if err != nil {
		return err
	}
	type due struct {
		reservationID, classID int64
	}
	var dues []due
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.reservationID, &d.classID); err != nil {
			rows.Close()
			return err
		}
		dues = append(dues, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, d := range dues {
		class, err := s.ClassByID(ctx, d.classID)
		if err != nil {
			continue
		}
		err = s.insertNotification(ctx, userID, model.NotificationClassReminder,
			"Tu clase empieza pronto",
			fmt.Sprintf("%s a las %s en %s", class.Name, class.StartsAt.Format("15:04"), class.Sede),
			map[string]string{
				"reservationId": strconv.FormatInt(d.reservationID, 10),
				"classId":       strconv.FormatInt(d.classID, 10),
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// CancelClass отменяет занятие: брони переводятся в cancelada, каждому
// участнику создаётся class_cancelled с данными занятия на момент отмены.
func (s *Store) CancelClass(ctx context.Context, classID int64) error {
	class, err := s.ClassByID(ctx, classID)
	if err != nil {
		return err
	}
	rows, err := s.pool.Query(ctx, `
		UPDATE reservations SET status = $3
		WHERE class_id = $1 AND status = $2
		RETURNING user_id`,
		classID, model.ReservationConfirmed, model.ReservationCancelled)
	if err != nil {
		return fmt.Errorf("stub: cancel class reservations: %w", err)
	}
	var userIDs []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return err
		}
		userIDs = append(userIDs, uid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `UPDATE classes SET cancelled_at = now() WHERE id = $1`, classID); err != nil {
		return fmt.Errorf("stub: mark class cancelled: %w", err)
	}
	data := map[string]string{
		"name":  class.Name,
		"sede":  class.Sede,
		"fecha": class.StartsAt.Format("2006-01-02"),
		"hora":  class.StartsAt.Format("15:04"),
	}
	for _, uid := range userIDs {
		err := s.insertNotification(ctx, uid, model.NotificationClassCancelled,
			"Clase cancelada",
			fmt.Sprintf("%s del %s a las %s fue cancelada", class.Name, data["fecha"], data["hora"]),
			data)
		if err != nil {
			return err
		}
	}
	return nil
}

// RescheduleClass переносит занятие и создаёт class_rescheduled всем
// держателям активных броней (старое и новое время в data).
func (s *Store) RescheduleClass(ctx context.Context, classID int64, newStart time.Time) error {
	class, err := s.ClassByID(ctx, classID)
	if err != nil {
		return err
	}
	oldStart := class.StartsAt
	if _, err := s.pool.Exec(ctx, `UPDATE classes SET starts_at = $2 WHERE id = $1`, classID, newStart); err != nil {
		return fmt.Errorf("stub: reschedule class: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id FROM reservations WHERE class_id = $1 AND status = $2`,
		classID, model.ReservationConfirmed)
	if err != nil {
		return fmt.Errorf("stub: list class reservations: %w", err)
	}
	type holder struct {
		reservationID int64
		userID        string
	}
	var holders []holder
	for rows.Next() {
		var h holder
		if err := rows.Scan(&h.reservationID, &h.userID); err != nil {
			rows.Close()
			return err
		}
		holders = append(holders, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, h := range holders {
		err := s.insertNotification(ctx, h.userID, model.NotificationClassRescheduled,
			"Clase reprogramada",
			fmt.Sprintf("%s se movió al %s a las %s", class.Name, newStart.Format("2006-01-02"), newStart.Format("15:04")),
			map[string]string{
				"reservationId": strconv.FormatInt(h.reservationID, 10),
				"classId":       strconv.FormatInt(classID, 10),
				"oldFecha":      oldStart.Format("2006-01-02"),
				"oldHora":       oldStart.Format("15:04"),
				"newFecha":      newStart.Format("2006-01-02"),
				"newHora":       newStart.Format("15:04"),
				"name":          class.Name,
				"sede":          class.Sede,
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// ExpireReservations переводит подтверждённые брони с прошедшим окном
// чекина в expirada / not_attended. Вызывается перед выдачей списков.
func (s *Store) ExpireReservations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE reservations r SET status = $1, attendance = $2
		FROM classes c
		WHERE c.id = r.class_id AND r.status = $3 AND r.attendance = $4
		  AND c.starts_at + make_interval(mins => $5) < now()`,
		model.ReservationExpired, model.AttendanceNotAttended,
		model.ReservationConfirmed, model.AttendancePending,
		int(model.CheckInClosesIn.Minutes()))
	if err != nil {
		return fmt.Errorf("stub: expire reservations: %w", err)
	}
	return nil
}
