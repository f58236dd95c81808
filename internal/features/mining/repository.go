// Package mining — repository.go реализует Store поверх PostgreSQL:
// таблицы pending_rewards и mining_log.
package mining

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// Repository — долговечный слой сессий на PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий сессий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SavePending сохраняет (или перезаписывает) ожидающую награду игрока.
// На игрока может существовать только одна запись.
func (r *Repository) SavePending(ctx context.Context, rec *PendingReward) error {
	query := `
		INSERT INTO pending_rewards (user_id, amount, tier, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    tier = EXCLUDED.tier,
		    duration_seconds = EXCLUDED.duration_seconds,
		    created_at = EXCLUDED.created_at
	`
	_, err := r.db.Exec(ctx, query, rec.UserID, rec.Amount, int(rec.Tier), rec.DurationSeconds, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения ожидающей награды: %w", err)
	}
	return nil
}

// GetPending возвращает ожидающую награду игрока или (nil, nil).
func (r *Repository) GetPending(ctx context.Context, userID int64) (*PendingReward, error) {
	query := `
		SELECT user_id, amount, tier, duration_seconds, created_at
		FROM pending_rewards
		WHERE user_id = $1
	`
	var rec PendingReward
	var tier int
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&rec.UserID, &rec.Amount, &tier, &rec.DurationSeconds, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения ожидающей награды: %w", err)
	}
	rec.Tier = rewards.Tier(tier)
	return &rec, nil
}

// DeletePending удаляет ожидающую награду игрока.
func (r *Repository) DeletePending(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pending_rewards WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления ожидающей награды: %w", err)
	}
	return nil
}

// DeleteExpiredPending удаляет записи старше cutoff, кроме exclude.
func (r *Repository) DeleteExpiredPending(ctx context.Context, cutoff time.Time, exclude []int64) (int64, error) {
	query := `
		DELETE FROM pending_rewards
		WHERE created_at < $1 AND NOT (user_id = ANY($2))
	`
	tag, err := r.db.Exec(ctx, query, cutoff, exclude)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки протухших наград: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveLog добавляет запись в журнал добычи.
func (r *Repository) SaveLog(ctx context.Context, entry *LogEntry) error {
	query := `
		INSERT INTO mining_log (user_id, amount, tier, duration_seconds, tx_hash)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, entry.UserID, entry.Amount, int(entry.Tier), entry.DurationSeconds, entry.TxHash)
	if err != nil {
		return fmt.Errorf("ошибка записи журнала добычи: %w", err)
	}
	return nil
}

// GetLog возвращает последние записи журнала добычи игрока.
func (r *Repository) GetLog(ctx context.Context, userID int64, limit int) ([]*LogEntry, error) {
	query := `
		SELECT id, user_id, amount, tier, duration_seconds, tx_hash, created_at
		FROM mining_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала добычи: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		var tier int
		err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &tier, &e.DurationSeconds, &e.TxHash, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала: %w", err)
		}
		e.Tier = rewards.Tier(tier)
		entries = append(entries, &e)
	}
	return entries, nil
}
