// Package cache — локальный кеш броней и истории посещений на sqlite.
// Обновляется после каждого успешного чтения из API; когда сигнал связи
// offline, оболочка рендерит списки из кеша. Кеш — слепок последнего
// успешного ответа, не источник истины.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ritmofit/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS reservations (
	id               INTEGER PRIMARY KEY,
	class_id         INTEGER NOT NULL,
	status           TEXT NOT NULL,
	attendance       TEXT NOT NULL,
	class_name       TEXT NOT NULL DEFAULT '',
	discipline       TEXT NOT NULL DEFAULT '',
	sede             TEXT NOT NULL DEFAULT '',
	starts_at        TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	fetched_at       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	reservation_id INTEGER PRIMARY KEY,
	class_id       INTEGER NOT NULL,
	class_name     TEXT NOT NULL DEFAULT '',
	discipline     TEXT NOT NULL DEFAULT '',
	sede           TEXT NOT NULL DEFAULT '',
	starts_at      TEXT NOT NULL,
	attendance     TEXT NOT NULL,
	rating         INTEGER NOT NULL DEFAULT 0
);
`

type Cache struct {
	db *sql.DB
}

// Open открывает (или создаёт) кеш в каталоге данных агента.
func Open(dataDir string) (*Cache, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	// sqlite: одна пишущая транзакция за раз
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// ReplaceReservations заменяет кеш броней свежим ответом API целиком:
// отменённые на сервере брони не должны оставаться в кеше.
func (c *Cache) ReplaceReservations(ctx context.Context, list []model.ReservationView) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations`); err != nil {
		return fmt.Errorf("cache: clear reservations: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range list {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reservations (id, class_id, status, attendance, class_name, discipline, sede, starts_at, duration_minutes, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ClassID, r.Status, r.Attendance, r.ClassName, r.Discipline, r.Sede,
			r.StartsAt.UTC().Format(time.RFC3339), r.DurationMinutes, now,
		)
		if err != nil {
			return fmt.Errorf("cache: insert reservation %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Reservations возвращает кешированные брони (ближайшие сначала).
func (c *Cache) Reservations(ctx context.Context) ([]model.ReservationView, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, class_id, status, attendance, class_name, discipline, sede, starts_at, duration_minutes
		 FROM reservations ORDER BY starts_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("cache: select reservations: %w", err)
	}
	defer rows.Close()
	var list []model.ReservationView
	for rows.Next() {
		var r model.ReservationView
		var startsAt string
		if err := rows.Scan(&r.ID, &r.ClassID, &r.Status, &r.Attendance, &r.ClassName, &r.Discipline, &r.Sede, &startsAt, &r.DurationMinutes); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, startsAt)
		if err != nil {
			return nil, fmt.Errorf("cache: parse starts_at %q: %w", startsAt, err)
		}
		r.StartsAt = t
		list = append(list, r)
	}
	return list, rows.Err()
}

// MergeHistory дописывает/обновляет записи истории (история только растёт).
func (c *Cache) MergeHistory(ctx context.Context, entries []model.HistoryEntry) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin: %w", err)
	}
	defer tx.Rollback()
	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history (reservation_id, class_id, class_name, discipline, sede, starts_at, attendance, rating)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (reservation_id) DO UPDATE SET
			   attendance = excluded.attendance,
			   rating = excluded.rating`,
			e.ReservationID, e.ClassID, e.ClassName, e.Discipline, e.Sede,
			e.StartsAt.UTC().Format(time.RFC3339), e.Attendance, e.Rating,
		)
		if err != nil {
			return fmt.Errorf("cache: upsert history %d: %w", e.ReservationID, err)
		}
	}
	return tx.Commit()
}

// History возвращает кешированную историю, свежие сначала. Границы —
// YYYY-MM-DD, пустые — без ограничения.
func (c *Cache) History(ctx context.Context, from, to string) ([]model.HistoryEntry, error) {
	query := `SELECT reservation_id, class_id, class_name, discipline, sede, starts_at, attendance, rating FROM history`
	var args []any
	var conds []string
	if from != "" {
		conds = append(conds, `starts_at >= ?`)
		args = append(args, from)
	}
	if to != "" {
		// включительно до конца дня
		conds = append(conds, `starts_at < ?`)
		args = append(args, to+"T23:59:59Z")
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY starts_at DESC"
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cache: select history: %w", err)
	}
	defer rows.Close()
	var list []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var startsAt string
		if err := rows.Scan(&e.ReservationID, &e.ClassID, &e.ClassName, &e.Discipline, &e.Sede, &startsAt, &e.Attendance, &e.Rating); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, startsAt)
		if err != nil {
			return nil, fmt.Errorf("cache: parse starts_at %q: %w", startsAt, err)
		}
		e.StartsAt = t
		list = append(list, e)
	}
	return list, rows.Err()
}
