package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/cache"
	"github.com/ritmofit/internal/connectivity"
	"github.com/ritmofit/internal/kv/memory"
	"github.com/ritmofit/internal/model"
	"github.com/ritmofit/internal/route"
	"github.com/ritmofit/internal/scheduler"
)

type fakeDispatcher struct {
	intents []route.NavigationIntent
}

func (f *fakeDispatcher) Navigate(intent route.NavigationIntent) {
	f.intents = append(f.intents, intent)
}

type okProber struct{}

func (okProber) Ping(ctx context.Context) error { return nil }

func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&rd).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &rd)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestTapEndpointNavigates(t *testing.T) {
	disp := &fakeDispatcher{}
	h := NewTapHandler(route.NewTapHandler(disp))

	rec := doJSON(t, h.Tap, http.MethodPost, "/api/tap", map[string]any{
		"data": map[string]string{"classId": "5"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Navigated bool                   `json:"navigated"`
		Intent    route.NavigationIntent `json:"intent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Navigated || resp.Intent.Screen != route.ScreenClassDetail {
		t.Fatalf("resp = %+v", resp)
	}
	if len(disp.intents) != 1 {
		t.Fatalf("dispatcher calls = %d", len(disp.intents))
	}
}

func TestTapEndpointUnknownPayload(t *testing.T) {
	disp := &fakeDispatcher{}
	h := NewTapHandler(route.NewTapHandler(disp))

	rec := doJSON(t, h.Tap, http.MethodPost, "/api/tap", map[string]any{
		"data": map[string]string{},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown payload is not an HTTP error, got %d", rec.Code)
	}
	var resp struct {
		Navigated bool `json:"navigated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Navigated || len(disp.intents) != 0 {
		t.Fatalf("must not navigate: resp=%+v intents=%v", resp, disp.intents)
	}
}

func TestConnectivityDeviceEndpoint(t *testing.T) {
	tracker := connectivity.NewTracker(okProber{})
	h := NewConnectivityHandler(tracker)

	rec := doJSON(t, h.Device, http.MethodPost, "/api/connectivity/device", map[string]any{
		"connected": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Offline bool   `json:"offline"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Offline || resp.State != string(connectivity.StateOffline) {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestConnectivityRetryEndpoint(t *testing.T) {
	tracker := connectivity.NewTracker(okProber{})
	tracker.ReportOutcome(false)
	h := NewConnectivityHandler(tracker)

	rec := doJSON(t, h.Retry, http.MethodPost, "/api/connectivity/retry", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Offline bool `json:"offline"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Offline {
		t.Fatalf("successful retry must flip tracker online")
	}
}

func TestBackgroundEndpoints(t *testing.T) {
	sched := scheduler.New(memory.New())
	defer sched.Close()
	ran := 0
	err := sched.Register(context.Background(), scheduler.Task{
		Name:     "poll",
		Interval: scheduler.MinInterval,
		Run:      func(ctx context.Context) error { ran++; return nil },
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	h := NewBackgroundHandler(sched)

	r := chi.NewRouter()
	r.Get("/api/background/{name}", h.Status)
	r.Post("/api/background/{name}/run", h.RunNow)

	req := httptest.NewRequest(http.MethodPost, "/api/background/poll/run", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || ran != 1 {
		t.Fatalf("run: status=%d ran=%d", rec.Code, ran)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/background/poll", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var st scheduler.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Registered || st.LastResult != scheduler.ResultSuccess {
		t.Fatalf("status = %+v", st)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/background/ghost/run", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task: status = %d", rec.Code)
	}
}

// Оболочка может выключить и снова включить известную задачу; произвольные
// имена отклоняются.
func TestBackgroundRegisterToggle(t *testing.T) {
	sched := scheduler.New(memory.New())
	defer sched.Close()
	task := scheduler.Task{
		Name:     "poll",
		Interval: scheduler.MinInterval,
		Run:      func(ctx context.Context) error { return nil },
	}
	if err := sched.Register(context.Background(), task); err != nil {
		t.Fatalf("register: %v", err)
	}
	h := NewBackgroundHandler(sched, task)

	r := chi.NewRouter()
	r.Post("/api/background/{name}/register", h.Register)
	r.Post("/api/background/{name}/unregister", h.Unregister)

	req := httptest.NewRequest(http.MethodPost, "/api/background/poll/unregister", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unregister: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var st scheduler.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Registered || sched.IsRegistered("poll") {
		t.Fatalf("task must be unregistered, status %+v", st)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/background/poll/register", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Registered || !sched.IsRegistered("poll") {
		t.Fatalf("task must be registered again, status %+v", st)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/background/ghost/register", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task register: status = %d", rec.Code)
	}
}

// Бэкенд недоступен — список броней отдаётся из sqlite-кеша с cached=true.
func TestReservationsFallBackToCache(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()

	client := api.NewClient(down.URL, time.Second, time.Second, tokenFunc("tok"), nil)
	db, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer db.Close()

	starts := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	err = db.ReplaceReservations(context.Background(), []model.ReservationView{
		{ID: 1, ClassID: 2, Status: model.ReservationConfirmed, Attendance: model.AttendancePending,
			ClassName: "Funcional", StartsAt: starts, DurationMinutes: 60},
	})
	if err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	h := NewReservationHandler(client, db)
	rec := doJSON(t, h.List, http.MethodGet, "/api/reservations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Cached       bool                    `json:"cached"`
		Reservations []model.ReservationView `json:"reservations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Cached || len(resp.Reservations) != 1 || resp.Reservations[0].ID != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

type tokenFunc string

func (t tokenFunc) Token(ctx context.Context) (string, error) { return string(t), nil }
