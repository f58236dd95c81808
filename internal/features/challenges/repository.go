// Package challenges — repository.go реализует Store поверх PostgreSQL:
// таблицы challenges, challenge_sets и achievements.
package challenges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository — долговечный слой заданий на PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий заданий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetLastRefresh возвращает время последней генерации набора игрока.
func (r *Repository) GetLastRefresh(ctx context.Context, userID int64) (time.Time, error) {
	var t time.Time
	err := r.db.QueryRow(ctx,
		`SELECT last_refresh FROM challenge_sets WHERE user_id = $1`, userID,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("ошибка чтения времени генерации: %w", err)
	}
	return t, nil
}

// ReplaceSet атомарно заменяет набор заданий и фиксирует время генерации.
func (r *Repository) ReplaceSet(ctx context.Context, userID int64, refreshedAt time.Time, set []*Challenge) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM challenges WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("ошибка удаления старого набора: %w", err)
	}

	for _, ch := range set {
		_, err := tx.Exec(ctx, `
			INSERT INTO challenges
				(id, user_id, code, counter_type, title, target, threshold, reward, progress, completed, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, ch.ID, ch.UserID, ch.Code, string(ch.Type), ch.Title, ch.Target, ch.Threshold,
			ch.Reward, ch.Progress, ch.Completed, ch.CreatedAt, ch.ExpiresAt)
		if err != nil {
			return fmt.Errorf("ошибка вставки задания: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO challenge_sets (user_id, last_refresh)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET last_refresh = EXCLUDED.last_refresh
	`, userID, refreshedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи времени генерации: %w", err)
	}

	return tx.Commit(ctx)
}

// GetChallenges возвращает набор заданий игрока.
func (r *Repository) GetChallenges(ctx context.Context, userID int64) ([]*Challenge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, code, counter_type, title, target, threshold, reward, progress, completed, created_at, expires_at
		FROM challenges
		WHERE user_id = $1
		ORDER BY created_at, code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заданий: %w", err)
	}
	defer rows.Close()

	var set []*Challenge
	for rows.Next() {
		var ch Challenge
		var counterType string
		err := rows.Scan(&ch.ID, &ch.UserID, &ch.Code, &counterType, &ch.Title, &ch.Target,
			&ch.Threshold, &ch.Reward, &ch.Progress, &ch.Completed, &ch.CreatedAt, &ch.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования задания: %w", err)
		}
		ch.Type = CounterType(counterType)
		set = append(set, &ch)
	}
	return set, nil
}

// UpdateChallenge сохраняет прогресс задания.
func (r *Repository) UpdateChallenge(ctx context.Context, ch *Challenge) error {
	_, err := r.db.Exec(ctx, `
		UPDATE challenges SET progress = $2, completed = $3 WHERE id = $1
	`, ch.ID, ch.Progress, ch.Completed)
	if err != nil {
		return fmt.Errorf("ошибка обновления задания: %w", err)
	}
	return nil
}

// UnlockAchievement открывает достижение. Возвращает true, если открыто
// впервые: повторное открытие съедается ON CONFLICT.
func (r *Repository) UnlockAchievement(ctx context.Context, userID int64, code string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO achievements (user_id, code)
		VALUES ($1, $2)
		ON CONFLICT (user_id, code) DO NOTHING
	`, userID, code)
	if err != nil {
		return false, fmt.Errorf("ошибка открытия достижения: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnlockedCodes возвращает коды открытых достижений игрока.
func (r *Repository) UnlockedCodes(ctx context.Context, userID int64) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения достижений: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("ошибка сканирования достижения: %w", err)
		}
		codes[code] = true
	}
	return codes, nil
}
