package stub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ritmofit/internal/model"
)

var (
	ErrClassFull         = errors.New("no quedan lugares")
	ErrAlreadyReserved   = errors.New("ya tenés una reserva para esta clase")
	ErrCancelWindow      = errors.New("la cancelación cierra 1 hora antes de la clase")
	ErrCheckInWindow     = errors.New("el check-in abre 30 minutos antes y cierra 30 minutos después del inicio")
	ErrNotAttended       = errors.New("solo se califican clases asistidas")
	ErrBadQR             = errors.New("código QR inválido")
	ErrReservationClosed = errors.New("la reserva no está confirmada")
)

// ClassFilter — фильтры каталога.
type ClassFilter struct {
	Sede       string
	Discipline string
	Date       string // YYYY-MM-DD
}

// Classes возвращает неотменённые занятия с числом активных броней.
func (s *Store) Classes(ctx context.Context, f ClassFilter) ([]model.Class, error) {
	query := `
		SELECT c.id, c.name, c.discipline, c.sede, c.instructor, c.starts_at, c.duration_minutes, c.capacity,
		       (SELECT count(*) FROM reservations r WHERE r.class_id = c.id AND r.status = $1)
		FROM classes c
		WHERE c.cancelled_at IS NULL`
	args := []any{model.ReservationConfirmed}
	if f.Sede != "" {
		args = append(args, f.Sede)
		query += fmt.Sprintf(" AND c.sede = $%d", len(args))
	}
	if f.Discipline != "" {
		args = append(args, f.Discipline)
		query += fmt.Sprintf(" AND c.discipline = $%d", len(args))
	}
	if f.Date != "" {
		args = append(args, f.Date)
		query += fmt.Sprintf(" AND c.starts_at::date = $%d::date", len(args))
	}
	query += " ORDER BY c.starts_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stub: list classes: %w", err)
	}
	defer rows.Close()
	var list []model.Class
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Discipline, &c.Sede, &c.Instructor,
			&c.StartsAt, &c.DurationMinutes, &c.Capacity, &c.Reserved); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *Store) ClassByID(ctx context.Context, id int64) (*model.Class, error) {
	c := &model.Class{}
	err := s.pool.QueryRow(ctx, `
		SELECT c.id, c.name, c.discipline, c.sede, c.instructor, c.starts_at, c.duration_minutes, c.capacity,
		       (SELECT count(*) FROM reservations r WHERE r.class_id = c.id AND r.status = $2)
		FROM classes c WHERE c.id = $1 AND c.cancelled_at IS NULL`,
		id, model.ReservationConfirmed,
	).Scan(&c.ID, &c.Name, &c.Discipline, &c.Sede, &c.Instructor,
		&c.StartsAt, &c.DurationMinutes, &c.Capacity, &c.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stub: class by id: %w", err)
	}
	return c, nil
}

// CreateClass добавляет занятие в расписание (админ/сид).
func (s *Store) CreateClass(ctx context.Context, c *model.Class) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO classes (name, discipline, sede, instructor, starts_at, duration_minutes, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.Name, c.Discipline, c.Sede, c.Instructor, c.StartsAt, c.DurationMinutes, c.Capacity,
	).Scan(&c.ID)
}

const reservationColumns = `
	r.id, r.class_id, r.status, r.attendance,
	c.name, c.discipline, c.sede, c.starts_at, c.duration_minutes`

func scanReservation(row pgx.Row) (*model.ReservationView, error) {
	r := &model.ReservationView{}
	err := row.Scan(&r.ID, &r.ClassID, &r.Status, &r.Attendance,
		&r.ClassName, &r.Discipline, &r.Sede, &r.StartsAt, &r.DurationMinutes)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Reservations — активные и будущие брони участника, ближайшие сначала.
func (s *Store) Reservations(ctx context.Context, userID string) ([]model.ReservationView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN classes c ON c.id = r.class_id
		WHERE r.user_id = $1 AND r.status = $2
		ORDER BY c.starts_at`,
		userID, model.ReservationConfirmed)
	if err != nil {
		return nil, fmt.Errorf("stub: list reservations: %w", err)
	}
	defer rows.Close()
	var list []model.ReservationView
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

// Reserve бронирует место. Вместимость и повторная бронь проверяются в одной
// транзакции; уникальный индекс по активным броням закрывает гонку.
func (s *Store) Reserve(ctx context.Context, userID string, classID int64) (*model.ReservationView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("stub: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var capacity, reserved int
	err = tx.QueryRow(ctx, `
		SELECT c.capacity, (SELECT count(*) FROM reservations r WHERE r.class_id = c.id AND r.status = $2)
		FROM classes c WHERE c.id = $1 AND c.cancelled_at IS NULL FOR UPDATE`,
		classID, model.ReservationConfirmed,
	).Scan(&capacity, &reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stub: lock class: %w", err)
	}
	if capacity > 0 && reserved >= capacity {
		return nil, ErrClassFull
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (user_id, class_id) VALUES ($1, $2) RETURNING id`,
		userID, classID,
	).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "idx_reservations_active") {
			return nil, ErrAlreadyReserved
		}
		return nil, fmt.Errorf("stub: insert reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("stub: commit: %w", err)
	}
	return s.reservationByID(ctx, id)
}

func (s *Store) reservationByID(ctx context.Context, id int64) (*model.ReservationView, error) {
	r, err := scanReservation(s.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN classes c ON c.id = r.class_id
		WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stub: reservation by id: %w", err)
	}
	return r, nil
}

// CancelReservation отменяет бронь участника. Окно: не позже чем за час до
// начала занятия.
func (s *Store) CancelReservation(ctx context.Context, userID string, id int64) error {
	r, err := s.reservationByID(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != model.ReservationConfirmed {
		return ErrReservationClosed
	}
	if !r.CanCancel(time.Now()) {
		return ErrCancelWindow
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE reservations SET status = $3 WHERE id = $1 AND user_id = $2 AND status = $4`,
		id, userID, model.ReservationCancelled, model.ReservationConfirmed)
	if err != nil {
		return fmt.Errorf("stub: cancel reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckIn отмечает посещение по QR со стойки. Формат QR: "class:<id>".
// Окно: от 30 минут до начала до 30 минут после.
func (s *Store) CheckIn(ctx context.Context, userID, qr string) (int64, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(qr), "class:")
	if !ok {
		return 0, ErrBadQR
	}
	classID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrBadQR
	}
	r, err := scanReservation(s.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations r JOIN classes c ON c.id = r.class_id
		WHERE r.user_id = $1 AND r.class_id = $2 AND r.status = $3`,
		userID, classID, model.ReservationConfirmed))
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("stub: checkin lookup: %w", err)
	}
	if !r.CheckInOpen(time.Now()) {
		return 0, ErrCheckInWindow
	}
	_, err = s.pool.Exec(ctx, `UPDATE reservations SET attendance = $2 WHERE id = $1`,
		r.ID, model.AttendanceAttended)
	if err != nil {
		return 0, fmt.Errorf("stub: mark attendance: %w", err)
	}
	return r.ID, nil
}

// History — посещения участника за период (границы YYYY-MM-DD включительно).
func (s *Store) History(ctx context.Context, userID, from, to string) ([]model.HistoryEntry, error) {
	query := `
		SELECT r.id, r.class_id, c.name, c.discipline, c.sede, c.starts_at, r.attendance, r.rating
		FROM reservations r JOIN classes c ON c.id = r.class_id
		WHERE r.user_id = $1 AND r.attendance <> $2`
	args := []any{userID, model.AttendancePending}
	if from != "" {
		args = append(args, from)
		query += fmt.Sprintf(" AND c.starts_at >= $%d::date", len(args))
	}
	if to != "" {
		args = append(args, to)
		query += fmt.Sprintf(" AND c.starts_at < $%d::date + interval '1 day'", len(args))
	}
	query += " ORDER BY c.starts_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stub: history: %w", err)
	}
	defer rows.Close()
	var list []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ReservationID, &e.ClassID, &e.ClassName, &e.Discipline,
			&e.Sede, &e.StartsAt, &e.Attendance, &e.Rating); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// RateClass сохраняет оценку 1..5 за посещённое занятие.
func (s *Store) RateClass(ctx context.Context, userID string, classID int64, rating int, comment string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reservations SET rating = $3, comment = $4
		WHERE user_id = $1 AND class_id = $2 AND attendance = $5`,
		userID, classID, rating, comment, model.AttendanceAttended)
	if err != nil {
		return fmt.Errorf("stub: rate class: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAttended
	}
	return nil
}
