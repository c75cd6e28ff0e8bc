package session

import (
	"context"
	"testing"

	"github.com/ritmofit/internal/kv/memory"
	"github.com/ritmofit/internal/model"
)

func TestSessionRoundTrip(t *testing.T) {
	m := NewManager(memory.New())
	ctx := context.Background()

	token, err := m.Token(ctx)
	if err != nil || token != "" {
		t.Fatalf("fresh store: Token = (%q, %v)", token, err)
	}
	user, err := m.User(ctx)
	if err != nil || user != nil {
		t.Fatalf("fresh store: User = (%v, %v)", user, err)
	}

	saved := &model.User{ID: "u1", Email: "demo@ritmofit.com", Name: "Demo"}
	if err := m.Save(ctx, "tok-1", saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	token, err = m.Token(ctx)
	if err != nil || token != "tok-1" {
		t.Fatalf("Token = (%q, %v)", token, err)
	}
	user, err = m.User(ctx)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if user == nil || user.ID != "u1" || user.Email != "demo@ritmofit.com" {
		t.Fatalf("User = %+v", user)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if token, _ := m.Token(ctx); token != "" {
		t.Fatalf("token survives Clear: %q", token)
	}
	if user, _ := m.User(ctx); user != nil {
		t.Fatalf("user survives Clear: %+v", user)
	}
}
