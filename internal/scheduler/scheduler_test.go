package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ritmofit/internal/kv/memory"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(memory.New())
	t.Cleanup(s.Close)
	return s
}

func noop(ctx context.Context) error { return nil }

func TestRegisterRequiresNameAndBody(t *testing.T) {
	s := newScheduler(t)
	if err := s.Register(context.Background(), Task{Name: "", Run: noop}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := s.Register(context.Background(), Task{Name: "x"}); err == nil {
		t.Fatalf("expected error for nil body")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	s := newScheduler(t)
	task := Task{Name: "poll", Interval: MinInterval, Run: noop}
	if err := s.Register(context.Background(), task); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := s.Register(context.Background(), task); err != nil {
		t.Fatalf("second register must be a no-op, got %v", err)
	}
	if !s.IsRegistered("poll") {
		t.Fatalf("task must stay registered")
	}
}

func TestIntervalClampedToMinimum(t *testing.T) {
	s := newScheduler(t)
	if err := s.Register(context.Background(), Task{Name: "fast", Interval: time.Second, Run: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}
	st := s.Status("fast")
	if st.Interval != MinInterval.String() {
		t.Fatalf("interval = %s, want clamp to %s", st.Interval, MinInterval)
	}
}

func TestRunNowMapsOutcome(t *testing.T) {
	s := newScheduler(t)
	var fail bool
	err := s.Register(context.Background(), Task{
		Name:     "job",
		Interval: MinInterval,
		Run: func(ctx context.Context) error {
			if fail {
				return errors.New("boom")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if res, ok := s.RunNow(context.Background(), "job"); !ok || res != ResultSuccess {
		t.Fatalf("got (%v, %v), want (success, true)", res, ok)
	}
	fail = true
	if res, ok := s.RunNow(context.Background(), "job"); !ok || res != ResultFailure {
		t.Fatalf("got (%v, %v), want (failure, true)", res, ok)
	}

	st := s.Status("job")
	if !st.Registered || st.LastResult != ResultFailure || st.LastRunAt.IsZero() {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := newScheduler(t)
	err := s.Register(context.Background(), Task{
		Name:     "panics",
		Interval: MinInterval,
		Run:      func(ctx context.Context) error { panic("unexpected") },
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	res, ok := s.RunNow(context.Background(), "panics")
	if !ok || res != ResultFailure {
		t.Fatalf("panic must map to failure, got (%v, %v)", res, ok)
	}
}

func TestRunNowUnknownTask(t *testing.T) {
	s := newScheduler(t)
	if _, ok := s.RunNow(context.Background(), "ghost"); ok {
		t.Fatalf("unknown task must report ok=false")
	}
}

func TestUnregisterStopsTask(t *testing.T) {
	s := newScheduler(t)
	if err := s.Register(context.Background(), Task{Name: "gone", Interval: MinInterval, Run: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Unregister(context.Background(), "gone")
	if s.IsRegistered("gone") {
		t.Fatalf("task must be unregistered")
	}
	if st := s.Status("gone"); st.Registered {
		t.Fatalf("status must report unregistered, got %+v", st)
	}
	// Снятие незарегистрированного имени безопасно.
	s.Unregister(context.Background(), "gone")
}
