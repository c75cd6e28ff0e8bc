package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ritmofit/internal/scheduler"
)

// BackgroundHandler управляет фоновыми задачами агента. known — задачи,
// объявленные в bootstrap: включать/выключать через API можно только их,
// произвольные тела задач по HTTP не принимаются.
type BackgroundHandler struct {
	sched *scheduler.Scheduler
	known map[string]scheduler.Task
}

func NewBackgroundHandler(s *scheduler.Scheduler, tasks ...scheduler.Task) *BackgroundHandler {
	known := make(map[string]scheduler.Task, len(tasks))
	for _, t := range tasks {
		known[t.Name] = t
	}
	return &BackgroundHandler{sched: s, known: known}
}

// Status — GET /api/background/{name}: диагностика фоновой задачи.
func (h *BackgroundHandler) Status(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeJSON(w, http.StatusOK, h.sched.Status(name))
}

// RunNow — POST /api/background/{name}/run: немедленный запуск тела задачи.
func (h *BackgroundHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, ok := h.sched.RunNow(r.Context(), name)
	if !ok {
		writeError(w, http.StatusNotFound, "task not registered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// Register — POST /api/background/{name}/register: включает известную
// задачу. Повторное включение уже работающей задачи — no-op.
func (h *BackgroundHandler) Register(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	task, ok := h.known[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	if err := h.sched.Register(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, "register failed")
		return
	}
	writeJSON(w, http.StatusOK, h.sched.Status(name))
}

// Unregister — POST /api/background/{name}/unregister: снимает задачу и
// дожидается остановки её цикла. Для уже снятой задачи — no-op.
func (h *BackgroundHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.known[name]; !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	h.sched.Unregister(r.Context(), name)
	writeJSON(w, http.StatusOK, h.sched.Status(name))
}
