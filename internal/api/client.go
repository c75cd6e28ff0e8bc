// Package api — клиент бэкенда RitmoFit. Тонкие обёртки над HTTP:
// авторизация/OTP, расписание, брони, чекин, история, оценки, уведомления.
//
// Таксономия ошибок: транспортные сбои (таймаут, DNS, connection refused)
// заворачиваются в ErrBackendUnreachable и трактуются как потеря связи;
// ответ с HTTP-статусом >= 400 — прикладная ошибка (*APIError) с текстом
// из тела. Каждый вызов сообщает исход трекеру связи: любой полученный
// ответ (включая 5xx) значит "бэкенд достижим".
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ritmofit/internal/model"
)

// ErrBackendUnreachable — сетевой сбой; сигнал для трекера связи, не для пользователя.
var ErrBackendUnreachable = errors.New("backend unreachable")

// APIError — прикладная ошибка бэкенда (HTTP 4xx/5xx с телом).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// TokenSource отдаёт текущий bearer-токен ("" — аноним).
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ConnectivityReporter получает исход каждого вызова (достижим/недостижим).
// Это общеприкладной канал из spec-а связи: сигнал восстанавливается от
// обычного трафика, без отдельного опроса.
type ConnectivityReporter interface {
	ReportOutcome(reachable bool)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	probe      *http.Client
	tokens     TokenSource
	reporter   ConnectivityReporter
}

// NewClient создаёт клиент. reporter может быть nil (например в тестах).
func NewClient(baseURL string, timeout, probeTimeout time.Duration, tokens TokenSource, reporter ConnectivityReporter) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		probe:      &http.Client{Timeout: probeTimeout},
		tokens:     tokens,
		reporter:   reporter,
	}
}

func (c *Client) report(reachable bool) {
	if c.reporter != nil {
		c.reporter.ReportOutcome(reachable)
	}
}

// doJSON выполняет запрос и декодирует ответ. body и out могут быть nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, auth bool) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("api: read token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.report(false)
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()
	c.report(true)
	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("api: decode response: %w", err)
		}
	}
	return nil
}

// readAPIError извлекает сообщение из тела ({"error": "..."}), иначе отдаёт общий текст.
func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: "error del servidor"}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(raw) > 0 {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// Ping — проба связи: GET / с коротким таймаутом. Любой HTTP-ответ
// (2xx–5xx) означает "достижим"; ошибкой считается только транспортный сбой.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("api: build probe: %w", err)
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		c.report(false)
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	resp.Body.Close()
	c.report(true)
	return nil
}

// AuthResponse — ответ логина и верификации OTP.
type AuthResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password, deviceName string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password, "device_name": deviceName,
	}, &out, false)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestOTP просит бэкенд отправить одноразовый код на email.
func (c *Client) RequestOTP(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/otp/request", map[string]string{"email": email}, nil, false)
}

func (c *Client) VerifyOTP(ctx context.Context, email, code, deviceName string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/otp/verify", map[string]string{
		"email": email, "code": code, "device_name": deviceName,
	}, &out, false)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil, true)
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMe обновляет имя и фото профиля.
func (c *Client) UpdateMe(ctx context.Context, name, photoURL string) (*model.User, error) {
	var out model.User
	err := c.doJSON(ctx, http.MethodPut, "/users/me", map[string]string{
		"name": name, "photo_url": photoURL,
	}, &out, true)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ClassFilter — фильтры каталога занятий. Пустые поля не отправляются.
type ClassFilter struct {
	Sede       string
	Discipline string
	Date       string // YYYY-MM-DD
}

func (c *Client) Classes(ctx context.Context, f ClassFilter) ([]model.Class, error) {
	q := url.Values{}
	if f.Sede != "" {
		q.Set("sede", f.Sede)
	}
	if f.Discipline != "" {
		q.Set("discipline", f.Discipline)
	}
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	path := "/classes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []model.Class
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ClassByID(ctx context.Context, id int64) (*model.Class, error) {
	var out model.Class
	if err := c.doJSON(ctx, http.MethodGet, "/classes/"+strconv.FormatInt(id, 10), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reservations(ctx context.Context) ([]model.ReservationView, error) {
	var out []model.ReservationView
	if err := c.doJSON(ctx, http.MethodGet, "/reservations", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Reserve(ctx context.Context, classID int64) (*model.ReservationView, error) {
	var out model.ReservationView
	err := c.doJSON(ctx, http.MethodPost, "/reservations", map[string]int64{"class_id": classID}, &out, true)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelReservation(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/reservations/"+strconv.FormatInt(id, 10), nil, nil, true)
}

// CheckInResponse — результат QR-чекина.
type CheckInResponse struct {
	ReservationID int64  `json:"reservation_id"`
	Attendance    string `json:"attendance"`
}

// CheckIn отправляет содержимое QR-кода (токен занятия на стойке).
func (c *Client) CheckIn(ctx context.Context, qr string) (*CheckInResponse, error) {
	var out CheckInResponse
	err := c.doJSON(ctx, http.MethodPost, "/checkin", map[string]string{"qr": qr}, &out, true)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History возвращает посещения за период (границы в YYYY-MM-DD, пустые — без ограничения).
func (c *Client) History(ctx context.Context, from, to string) ([]model.HistoryEntry, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	path := "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []model.HistoryEntry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RateClass(ctx context.Context, classID int64, rating int, comment string) error {
	return c.doJSON(ctx, http.MethodPost, "/ratings", map[string]any{
		"class_id": classID, "rating": rating, "comment": comment,
	}, nil, true)
}

// PendingNotifications забирает записи, ожидающие доставки. Порядок — как
// отдал сервер; клиент его не меняет.
func (c *Client) PendingNotifications(ctx context.Context) ([]model.PendingNotification, error) {
	var out []model.PendingNotification
	if err := c.doJSON(ctx, http.MethodGet, "/notifications", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}
