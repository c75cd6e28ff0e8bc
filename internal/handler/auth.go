package handler

import (
	"net/http"
	"strings"

	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/session"
)

type AuthHandler struct {
	api        *api.Client
	session    *session.Manager
	deviceName string
}

func NewAuthHandler(apiClient *api.Client, sess *session.Manager, deviceName string) *AuthHandler {
	return &AuthHandler{api: apiClient, session: sess, deviceName: deviceName}
}

// Login — POST /api/auth/login {email, password}. Успех сохраняет токен и
// профиль в kv-хранилище агента.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	resp, err := h.api.Login(r.Context(), req.Email, req.Password, h.deviceName)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if err := h.session.Save(r.Context(), resp.Token, &resp.User); err != nil {
		logger.Errorf("auth: save session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}
	writeJSON(w, http.StatusOK, resp.User)
}

// RequestOTP — POST /api/auth/otp/request {email}.
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}
	if err := h.api.RequestOTP(r.Context(), req.Email); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// VerifyOTP — POST /api/auth/otp/verify {email, code}.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "email and code required")
		return
	}
	resp, err := h.api.VerifyOTP(r.Context(), req.Email, req.Code, h.deviceName)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if err := h.session.Save(r.Context(), resp.Token, &resp.User); err != nil {
		logger.Errorf("auth: save session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}
	writeJSON(w, http.StatusOK, resp.User)
}

// Logout — POST /api/auth/logout. Локальная сессия очищается в любом
// случае: недоступность бэкенда не должна запирать участника в терминале.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.api.Logout(r.Context()); err != nil {
		logger.Errorf("auth: backend logout: %v", err)
	}
	if err := h.session.Clear(r.Context()); err != nil {
		logger.Errorf("auth: clear session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Session — GET /api/auth/session: локальное состояние логина без похода в
// сеть (оболочка решает, показывать ли экран входа, даже offline).
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token, err := h.session.Token(r.Context())
	if err != nil {
		logger.Errorf("auth: read token: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read session")
		return
	}
	user, err := h.session.User(r.Context())
	if err != nil {
		logger.Errorf("auth: read user: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logged_in": token != "",
		"user":      user,
	})
}
