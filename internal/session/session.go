// Package session хранит учётные данные участника поверх kv.Store.
// Ключи фиксированы: token (bearer-токен) и user (профиль JSON) — все
// потребители сессии ходят только через этот пакет.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ritmofit/internal/kv"
	"github.com/ritmofit/internal/model"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

type Manager struct {
	store kv.Store
}

func NewManager(store kv.Store) *Manager {
	return &Manager{store: store}
}

// Token возвращает сохранённый bearer-токен ("" — не залогинены).
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.store.Get(ctx, keyToken)
}

// User возвращает сохранённый профиль или nil, если его нет.
func (m *Manager) User(ctx context.Context) (*model.User, error) {
	raw, err := m.store.Get(ctx, keyUser)
	if err != nil || raw == "" {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("session: parse user: %w", err)
	}
	return &u, nil
}

// Save записывает токен и профиль после логина/верификации OTP.
func (m *Manager) Save(ctx context.Context, token string, user *model.User) error {
	if err := m.store.Set(ctx, keyToken, token); err != nil {
		return fmt.Errorf("session: save token: %w", err)
	}
	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("session: encode user: %w", err)
		}
		if err := m.store.Set(ctx, keyUser, string(raw)); err != nil {
			return fmt.Errorf("session: save user: %w", err)
		}
	}
	return nil
}

// Clear удаляет учётные данные (logout, сброс пароля).
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, keyToken); err != nil {
		return err
	}
	return m.store.Delete(ctx, keyUser)
}
