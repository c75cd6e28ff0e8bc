package model

import "time"

// Class — занятие в расписании sede (зала).
type Class struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Discipline      string    `json:"discipline"`
	Sede            string    `json:"sede"`
	Instructor      string    `json:"instructor"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Capacity        int       `json:"capacity"`
	Reserved        int       `json:"reserved"`
}

// EndsAt возвращает время окончания занятия.
func (c *Class) EndsAt() time.Time {
	return c.StartsAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// Full сообщает, остались ли места.
func (c *Class) Full() bool {
	return c.Capacity > 0 && c.Reserved >= c.Capacity
}
