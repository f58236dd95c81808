// Package economy — repository.go выполняет все операции с таблицами
// player_stats и transactions. Все денежные операции выполняются
// в транзакциях БД для целостности данных.
package economy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// Repository предоставляет методы для работы со статистикой и историей операций.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий экономики.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const statsColumns = `id, user_id, crystals, season_points,
	total_sessions, total_earned, total_rare, total_claims, best_combo_level,
	combo_streak, combo_level, combo_multiplier, combo_last_claim, combo_expires_at,
	created_at, updated_at`

// EnsureStats гарантирует, что у игрока есть запись статистики.
// Вызывается при регистрации.
func (r *Repository) EnsureStats(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO player_stats (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания статистики: %w", err)
	}
	return nil
}

// GetStats возвращает статистику игрока.
func (r *Repository) GetStats(ctx context.Context, userID int64) (*PlayerStats, error) {
	query := `SELECT ` + statsColumns + ` FROM player_stats WHERE user_id = $1`
	var s PlayerStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.Crystals, &s.SeasonPoints,
		&s.TotalSessions, &s.TotalEarned, &s.TotalRare, &s.TotalClaims, &s.BestComboLevel,
		&s.ComboStreak, &s.ComboLevel, &s.ComboMultiplier, &s.ComboLastClaim, &s.ComboExpiresAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &s, nil
}

// RecordSessionComplete обновляет пожизненные счётчики в момент
// завершения сессии (ещё ДО вывода награды).
func (r *Repository) RecordSessionComplete(ctx context.Context, userID int64, rare bool) error {
	rareInc := 0
	if rare {
		rareInc = 1
	}
	query := `
		UPDATE player_stats
		SET total_sessions = total_sessions + 1,
		    total_rare = total_rare + $2,
		    updated_at = NOW()
		WHERE user_id = $1
	`
	_, err := r.db.Exec(ctx, query, userID, rareInc)
	if err != nil {
		return fmt.Errorf("ошибка записи завершённой сессии: %w", err)
	}
	return nil
}

// Settle зачисляет подтверждённую награду одной транзакцией БД:
// кристаллы, очки сезона, новое комбо и запись в историю — атомарно.
func (r *Repository) Settle(ctx context.Context, userID int64, reward, points int64, combo rewards.ComboState, txType, description string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку игрока, чтобы два зачисления не переплелись
	var bestCombo int
	err = tx.QueryRow(ctx, `
		SELECT best_combo_level FROM player_stats WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&bestCombo)
	if err != nil {
		return fmt.Errorf("игрок не найден в статистике: %w", err)
	}
	if combo.Level > bestCombo {
		bestCombo = combo.Level
	}

	_, err = tx.Exec(ctx, `
		UPDATE player_stats
		SET crystals = crystals + $2,
		    season_points = season_points + $3,
		    total_earned = total_earned + $2,
		    total_claims = total_claims + 1,
		    best_combo_level = $4,
		    combo_streak = $5,
		    combo_level = $6,
		    combo_multiplier = $7,
		    combo_last_claim = $8,
		    combo_expires_at = $9,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, reward, points, bestCombo,
		combo.Streak, combo.Level, combo.Multiplier, combo.LastClaimAt, combo.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка зачисления награды: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (user_id, amount, transaction_type, description)
		VALUES ($1, $2, $3, $4)
	`, userID, reward, txType, description)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	return tx.Commit(ctx)
}

// AddCrystals начисляет кристаллы вне вывода награды:
// призы заданий, достижения, выдача администратором.
func (r *Repository) AddCrystals(ctx context.Context, userID int64, amount int64, txType, description string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE player_stats
		SET crystals = crystals + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка начисления: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (user_id, amount, transaction_type, description)
		VALUES ($1, $2, $3, $4)
	`, userID, amount, txType, description)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	return tx.Commit(ctx)
}

// GetTransactions возвращает последние N операций игрока.
func (r *Repository) GetTransactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	query := `
		SELECT id, user_id, amount, transaction_type, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.TransactionType, &t.Description, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, nil
}

// Top возвращает лучших игроков сезона по очкам.
func (r *Repository) Top(ctx context.Context, limit int) ([]*PlayerStats, error) {
	query := `SELECT ` + statsColumns + ` FROM player_stats
		WHERE season_points > 0
		ORDER BY season_points DESC
		LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения топа: %w", err)
	}
	defer rows.Close()

	var top []*PlayerStats
	for rows.Next() {
		var s PlayerStats
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Crystals, &s.SeasonPoints,
			&s.TotalSessions, &s.TotalEarned, &s.TotalRare, &s.TotalClaims, &s.BestComboLevel,
			&s.ComboStreak, &s.ComboLevel, &s.ComboMultiplier, &s.ComboLastClaim, &s.ComboExpiresAt,
			&s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		top = append(top, &s)
	}
	return top, nil
}
