// Package stub — dev-бэкенд RitmoFit (services/gymstub): участники, OTP,
// расписание, брони, чекин, уведомления. Реализует ровно тот HTTP-контракт,
// который ждёт агент; для разработки и интеграционных прогонов, не для
// production.
package stub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid or expired code")
)

const otpTTL = 10 * time.Minute

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureUser возвращает участника по email, создавая запись при первом
// обращении (OTP-флоу регистрирует неявно).
func (s *Store) EnsureUser(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email) VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		 RETURNING id, email, name, photo_url, created_at`,
		uuid.New().String(), email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("stub: ensure user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, photo_url, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stub: user by id: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, name, photoURL string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, photo_url = $3 WHERE id = $1
		 RETURNING id, email, name, photo_url, created_at`,
		id, name, photoURL,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stub: update user: %w", err)
	}
	return u, nil
}

// VerifyPassword проверяет пароль участника (bcrypt).
func (s *Store) VerifyPassword(ctx context.Context, email, password string) (*model.User, error) {
	u := &model.User{}
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, photo_url, password_hash, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &hash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("stub: user by email: %w", err)
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SetPassword задаёт пароль (используется сидом dev-данных).
func (s *Store) SetPassword(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("stub: hash password: %w", err)
	}
	_, err = s.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE email = $1`, email, string(hash))
	return err
}

// CreateOTP генерирует шестизначный код и пишет его в лог вместо почты:
// у dev-бэкенда нет SMTP.
func (s *Store) CreateOTP(ctx context.Context, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("stub: generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	_, err = s.pool.Exec(ctx,
		`INSERT INTO otp_codes (email, code, expires_at) VALUES ($1, $2, $3)`,
		email, code, time.Now().Add(otpTTL),
	)
	if err != nil {
		return "", fmt.Errorf("stub: save otp: %w", err)
	}
	logger.Infof("stub: OTP for %s: %s", email, code)
	return code, nil
}

// ConsumeOTP проверяет код и помечает его использованным.
func (s *Store) ConsumeOTP(ctx context.Context, email, code string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE otp_codes SET used = true
		 WHERE email = $1 AND code = $2 AND NOT used AND expires_at > now()`,
		email, code,
	)
	if err != nil {
		return fmt.Errorf("stub: consume otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidOTP
	}
	return nil
}

// CreateSession выдаёт bearer-токен.
func (s *Store) CreateSession(ctx context.Context, userID, deviceName string) (string, error) {
	token := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (token, user_id, device_name) VALUES ($1, $2, $3)`,
		token, userID, deviceName,
	)
	if err != nil {
		return "", fmt.Errorf("stub: create session: %w", err)
	}
	return token, nil
}

// UserByToken возвращает владельца живой сессии.
func (s *Store) UserByToken(ctx context.Context, token string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.name, u.photo_url, u.created_at
		 FROM sessions ses JOIN users u ON u.id = ses.user_id
		 WHERE ses.token = $1 AND ses.revoked_at IS NULL`,
		token,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stub: user by token: %w", err)
	}
	return u, nil
}

// RevokeSession отзывает токен; отсутствие сессии — не ошибка.
func (s *Store) RevokeSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE token = $1 AND revoked_at IS NULL`, token)
	return err
}
