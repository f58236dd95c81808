// Package admin — repository.go выполняет операции с таблицами
// admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository — долговечный слой админ-панели.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий админ-панели.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession создаёт сессию администратора, затирая старые.
func (r *Repository) CreateSession(ctx context.Context, userID int64, ttl time.Duration) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM admin_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("ошибка удаления старых сессий: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO admin_sessions (user_id, expires_at)
		VALUES ($1, NOW() + $2::interval)
	`, userID, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return tx.Commit(ctx)
}

// GetActiveSession возвращает живую сессию или (nil, nil).
func (r *Repository) GetActiveSession(ctx context.Context, userID int64) (*Session, error) {
	var s Session
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, created_at, expires_at
		FROM admin_sessions
		WHERE user_id = $1 AND expires_at > NOW()
	`, userID).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return &s, nil
}

// DeleteSessions удаляет все сессии администратора (выход).
func (r *Repository) DeleteSessions(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления сессий: %w", err)
	}
	return nil
}

// RecordAttempt записывает попытку входа.
func (r *Repository) RecordAttempt(ctx context.Context, userID int64, success bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_login_attempts (user_id, success)
		VALUES ($1, $2)
	`, userID, success)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// CountRecentFailures считает неудачные попытки за последний час.
func (r *Repository) CountRecentFailures(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempted_at > NOW() - INTERVAL '1 hour'
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	return count, nil
}
