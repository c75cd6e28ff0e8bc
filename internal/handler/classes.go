package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/model"
)

type ClassHandler struct {
	api *api.Client
}

func NewClassHandler(apiClient *api.Client) *ClassHandler {
	return &ClassHandler{api: apiClient}
}

// List — GET /api/classes?sede=&discipline=&date=. Каталог занятий всегда
// живой, из кеша не отдаётся: расписание протухает быстро.
func (h *ClassHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	classes, err := h.api.Classes(r.Context(), api.ClassFilter{
		Sede:       q.Get("sede"),
		Discipline: q.Get("discipline"),
		Date:       q.Get("date"),
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if classes == nil {
		classes = []model.Class{}
	}
	writeJSON(w, http.StatusOK, classes)
}

// ByID — GET /api/classes/{id}.
func (h *ClassHandler) ByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid class id")
		return
	}
	class, err := h.api.ClassByID(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}
