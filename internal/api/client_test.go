package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

type recordingReporter struct {
	reachable atomic.Int32
	lost      atomic.Int32
}

func (r *recordingReporter) ReportOutcome(ok bool) {
	if ok {
		r.reachable.Add(1)
	} else {
		r.lost.Add(1)
	}
}

func newTestClient(url string, rep ConnectivityReporter) *Client {
	return NewClient(url, 2*time.Second, time.Second, staticTokens("tok"), rep)
}

func TestAPIErrorMessageExtracted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"ya tenés una reserva para esta clase"}`))
	}))
	defer srv.Close()

	rep := &recordingReporter{}
	c := newTestClient(srv.URL, rep)
	_, err := c.Reserve(context.Background(), 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Message != "ya tenés una reserva para esta clase" {
		t.Fatalf("got %+v", apiErr)
	}
	// Ответ получен — бэкенд достижим.
	if rep.reachable.Load() != 1 || rep.lost.Load() != 0 {
		t.Fatalf("reporter: reachable=%d lost=%d", rep.reachable.Load(), rep.lost.Load())
	}
}

func TestAPIErrorFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	_, err := c.Me(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "error del servidor" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestTransportFailureIsBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	rep := &recordingReporter{}
	c := newTestClient(srv.URL, rep)
	_, err := c.Reservations(context.Background())
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	if rep.lost.Load() != 1 {
		t.Fatalf("reporter must be told about the loss, lost=%d", rep.lost.Load())
	}
}

func TestPingAnyResponseIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rep := &recordingReporter{}
	c := newTestClient(srv.URL, rep)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("5xx still means reachable: %v", err)
	}
	if rep.reachable.Load() != 1 {
		t.Fatalf("reporter: reachable=%d", rep.reachable.Load())
	}
}

func TestAuthorizationHeaderSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	if _, err := c.PendingNotifications(context.Background()); err != nil {
		t.Fatalf("PendingNotifications: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestLoginDoesNotSendToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"token":"t","user":{"id":"u1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	resp, err := c.Login(context.Background(), "a@b.c", "pw", "kiosk")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "t" || resp.User.ID != "u1" {
		t.Fatalf("resp = %+v", resp)
	}
	if gotAuth != "" {
		t.Fatalf("login must be anonymous, got Authorization %q", gotAuth)
	}
}
