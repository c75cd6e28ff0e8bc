package kv_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ritmofit/internal/kv"
	"github.com/ritmofit/internal/kv/memory"
	"github.com/ritmofit/internal/kv/plainfile"
	"github.com/ritmofit/internal/kv/securefile"
)

// roundTrip прогоняет общий контракт Store: Get несуществующего ключа — ""
// без ошибки, Set/Get/Delete.
func roundTrip(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()

	v, err := s.Get(ctx, "missing")
	if err != nil || v != "" {
		t.Fatalf("Get(missing) = (%q, %v), want (\"\", nil)", v, err)
	}
	if err := s.Set(ctx, "token", "abc123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Get(ctx, "token"); err != nil || v != "abc123" {
		t.Fatalf("Get(token) = (%q, %v)", v, err)
	}
	if err := s.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if v, _ := s.Get(ctx, "token"); v != "" {
		t.Fatalf("Get after Delete = %q, want empty", v)
	}
	// Удаление отсутствующего ключа — не ошибка.
	if err := s.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete(missing): %v", err)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	roundTrip(t, memory.New())
}

func TestPlainFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := plainfile.New(dir)
	if err != nil {
		t.Fatalf("plainfile.New: %v", err)
	}
	roundTrip(t, s)
}

func TestPlainFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := plainfile.New(dir)
	if err != nil {
		t.Fatalf("plainfile.New: %v", err)
	}
	if err := s.Set(ctx, "user", `{"id":"u1"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s2, err := plainfile.New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, _ := s2.Get(ctx, "user"); v != `{"id":"u1"}` {
		t.Fatalf("value lost on reopen: %q", v)
	}
}

func TestSecureFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := securefile.New(dir)
	if err != nil {
		t.Fatalf("securefile.New: %v", err)
	}
	roundTrip(t, s)
}

func TestSecureFileEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := securefile.New(dir)
	if err != nil {
		t.Fatalf("securefile.New: %v", err)
	}
	const secret = "very-secret-token"
	if err := s.Set(ctx, "token", secret); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "agent.kv"))
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	if bytes.Contains(raw, []byte(secret)) {
		t.Fatalf("token stored in plaintext")
	}

	// Тот же каталог и ключ устройства — данные читаются обратно.
	s2, err := securefile.New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, _ := s2.Get(ctx, "token"); v != secret {
		t.Fatalf("decrypted value = %q, want %q", v, secret)
	}
}

func TestOpenPrefersSecureFile(t *testing.T) {
	dir := t.TempDir()
	s, err := kv.Open(context.Background(), "", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*securefile.Client); !ok {
		t.Fatalf("Open without store URL must pick securefile, got %T", s)
	}
}
