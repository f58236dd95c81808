// Package economy управляет статистикой игроков: кристаллами, очками сезона,
// комбо и пожизненными счётчиками. models.go описывает структуры данных.
package economy

import (
	"time"

	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// PlayerStats — запись статистики игрока в БД.
// Кристаллы и очки сезона зачисляются ТОЛЬКО при подтверждённом выводе.
// Пожизненные счётчики (total_*) никогда не сбрасываются — по ним
// оцениваются достижения.
type PlayerStats struct {
	ID           int64 `db:"id"`
	UserID       int64 `db:"user_id"`
	Crystals     int64 `db:"crystals"`      // Баланс кристаллов
	SeasonPoints int64 `db:"season_points"` // Очки текущего сезона

	// Пожизненные счётчики (для достижений, никогда не сбрасываются)
	TotalSessions  int64 `db:"total_sessions"`   // Завершено сессий
	TotalEarned    int64 `db:"total_earned"`     // Всего добыто кристаллов
	TotalRare      int64 `db:"total_rare"`       // Жил редкого тира и выше
	TotalClaims    int64 `db:"total_claims"`     // Подтверждённых выводов
	BestComboLevel int   `db:"best_combo_level"` // Максимальный достигнутый уровень комбо

	// Состояние комбо-серии
	ComboStreak     int        `db:"combo_streak"`
	ComboLevel      int        `db:"combo_level"`
	ComboMultiplier float64    `db:"combo_multiplier"`
	ComboLastClaim  *time.Time `db:"combo_last_claim"`
	ComboExpiresAt  *time.Time `db:"combo_expires_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ComboState собирает состояние комбо из колонок БД.
func (s *PlayerStats) ComboState() rewards.ComboState {
	state := rewards.ComboState{
		Streak:     s.ComboStreak,
		Level:      s.ComboLevel,
		Multiplier: s.ComboMultiplier,
	}
	if state.Multiplier == 0 {
		state.Multiplier = 1.0
	}
	if s.ComboLastClaim != nil {
		state.LastClaimAt = *s.ComboLastClaim
	}
	if s.ComboExpiresAt != nil {
		state.ExpiresAt = *s.ComboExpiresAt
	}
	return state
}

// Transaction — запись в истории операций с кристаллами.
type Transaction struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	Amount          int64     `db:"amount"`
	TransactionType string    `db:"transaction_type"` // claim_settled, challenge_reward, achievement_reward, admin_grant
	Description     string    `db:"description"`
	CreatedAt       time.Time `db:"created_at"`
}
