package stub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
)

type ctxKey int

const userKey ctxKey = 0

// Server — HTTP-обвязка dev-бэкенда. Контракт тот же, что у production
// бэкенда RitmoFit: агент не отличает их друг от друга.
type Server struct {
	store *Store
}

func NewServer(store *Store) *Server {
	return &Server{store: store}
}

// Routes навешивает маршруты на существующий chi-роутер.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ritmofit dev backend"))
	})
	r.Post("/auth/login", s.login)
	r.Post("/auth/otp/request", s.otpRequest)
	r.Post("/auth/otp/verify", s.otpVerify)

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/auth/logout", s.logout)
		r.Get("/users/me", s.me)
		r.Put("/users/me", s.updateMe)
		r.Get("/classes", s.classes)
		r.Get("/classes/{id}", s.classByID)
		r.Get("/reservations", s.reservations)
		r.Post("/reservations", s.reserve)
		r.Delete("/reservations/{id}", s.cancelReservation)
		r.Post("/checkin", s.checkIn)
		r.Get("/history", s.history)
		r.Post("/ratings", s.rate)
		r.Get("/notifications", s.notifications)
	})

	// Админ-маршруты для ручной работы с расписанием при разработке.
	r.Post("/admin/classes", s.adminCreateClass)
	r.Delete("/admin/classes/{id}", s.adminCancelClass)
	r.Put("/admin/classes/{id}/reschedule", s.adminRescheduleClass)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("stub: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError отображает ошибки стора в статусы.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "no encontrado")
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidOTP):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrClassFull), errors.Is(err, ErrAlreadyReserved),
		errors.Is(err, ErrCancelWindow), errors.Is(err, ErrCheckInWindow),
		errors.Is(err, ErrNotAttended), errors.Is(err, ErrBadQR),
		errors.Is(err, ErrReservationClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Errorf("stub: %v", err)
		writeError(w, http.StatusInternalServerError, "error del servidor")
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "token requerido")
			return
		}
		user, err := s.store.UserByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "sesión inválida")
				return
			}
			writeStoreError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *model.User {
	u, _ := r.Context().Value(userKey).(*model.User)
	return u
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		DeviceName string `json:"device_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	user, err := s.store.VerifyPassword(r.Context(), strings.ToLower(req.Email), req.Password)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	token, err := s.store.CreateSession(r.Context(), user.ID, req.DeviceName)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) otpRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email requerido")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.store.EnsureUser(r.Context(), email); err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := s.store.CreateOTP(r.Context(), email); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) otpVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Code       string `json:"code"`
		DeviceName string `json:"device_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.store.ConsumeOTP(r.Context(), email, req.Code); err != nil {
		writeStoreError(w, err)
		return
	}
	user, err := s.store.EnsureUser(r.Context(), email)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	token, err := s.store.CreateSession(r.Context(), user.ID, req.DeviceName)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := s.store.RevokeSession(r.Context(), token); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		PhotoURL string `json:"photo_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	user, err := s.store.UpdateUser(r.Context(), currentUser(r).ID, req.Name, req.PhotoURL)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) classes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.store.Classes(r.Context(), ClassFilter{
		Sede:       q.Get("sede"),
		Discipline: q.Get("discipline"),
		Date:       q.Get("date"),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []model.Class{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) classByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	class, err := s.store.ClassByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (s *Server) reservations(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ExpireReservations(r.Context()); err != nil {
		logger.Errorf("stub: expire sweep: %v", err)
	}
	list, err := s.store.Reservations(r.Context(), currentUser(r).ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []model.ReservationView{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClassID int64 `json:"class_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClassID <= 0 {
		writeError(w, http.StatusBadRequest, "class_id requerido")
		return
	}
	res, err := s.store.Reserve(r.Context(), currentUser(r).ID, req.ClassID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) cancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	if err := s.store.CancelReservation(r.Context(), currentUser(r).ID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": model.ReservationCancelled})
}

func (s *Server) checkIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QR string `json:"qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QR == "" {
		writeError(w, http.StatusBadRequest, "qr requerido")
		return
	}
	reservationID, err := s.store.CheckIn(r.Context(), currentUser(r).ID, req.QR)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reservation_id": reservationID,
		"attendance":     model.AttendanceAttended,
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ExpireReservations(r.Context()); err != nil {
		logger.Errorf("stub: expire sweep: %v", err)
	}
	list, err := s.store.History(r.Context(), currentUser(r).ID, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) rate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClassID int64  `json:"class_id"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating debe ser 1..5")
		return
	}
	if err := s.store.RateClass(r.Context(), currentUser(r).ID, req.ClassID, req.Rating, req.Comment); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rated"})
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.PendingNotifications(r.Context(), currentUser(r).ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []model.PendingNotification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) adminCreateClass(w http.ResponseWriter, r *http.Request) {
	var c model.Class
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Name == "" || c.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "name y starts_at requeridos")
		return
	}
	if c.DurationMinutes <= 0 {
		c.DurationMinutes = 60
	}
	if err := s.store.CreateClass(r.Context(), &c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) adminCancelClass(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	if err := s.store.CancelClass(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) adminRescheduleClass(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}
	var req struct {
		StartsAt time.Time `json:"starts_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "starts_at requerido")
		return
	}
	if err := s.store.RescheduleClass(r.Context(), id, req.StartsAt); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rescheduled"})
}
