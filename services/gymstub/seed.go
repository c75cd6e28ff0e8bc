package main

import (
	"context"
	"time"

	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
	"github.com/ritmofit/internal/stub"
)

// seedDemo создаёт демо-участника и пару занятий на сегодня/завтра, чтобы
// агент сразу показывал живые данные.
func seedDemo(store *stub.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const demoEmail = "demo@ritmofit.com"
	if _, err := store.EnsureUser(ctx, demoEmail); err != nil {
		logger.Errorf("seed: demo user: %v", err)
		return
	}
	if err := store.SetPassword(ctx, demoEmail, "demo1234"); err != nil {
		logger.Errorf("seed: demo password: %v", err)
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	classes := []model.Class{
		{Name: "Funcional", Discipline: "funcional", Sede: "Palermo", Instructor: "Lucía Gómez",
			StartsAt: today.Add(18 * time.Hour), DurationMinutes: 60, Capacity: 20},
		{Name: "Spinning", Discipline: "spinning", Sede: "Palermo", Instructor: "Marcos Díaz",
			StartsAt: today.Add(19 * time.Hour), DurationMinutes: 45, Capacity: 15},
		{Name: "Yoga", Discipline: "yoga", Sede: "Belgrano", Instructor: "Carla Ruiz",
			StartsAt: today.Add(24 * time.Hour).Add(10 * time.Hour), DurationMinutes: 75, Capacity: 12},
	}
	for i := range classes {
		if err := store.CreateClass(ctx, &classes[i]); err != nil {
			logger.Errorf("seed: class %s: %v", classes[i].Name, err)
			return
		}
	}
	logger.Infof("seed: demo member %s (password demo1234) and %d classes", demoEmail, len(classes))
}
