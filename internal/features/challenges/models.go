// Package challenges реализует трекер заданий и достижений.
// Ежедневный набор заданий лениво перегенерируется раз в сутки;
// достижения считаются по пожизненным счётчикам и открываются один раз.
package challenges

import (
	"context"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/mining-bot/internal/features/economy"
)

// CounterType — тип счётчика, по которому растёт прогресс задания.
type CounterType string

// Типы счётчиков заданий.
const (
	CounterMineCount  CounterType = "mine_count"  // Завершённые сессии
	CounterDataEarned CounterType = "data_earned" // Выведенные кристаллы
	CounterRareDrops  CounterType = "rare_drops"  // Жилы редкого тира и выше
	CounterComboLevel CounterType = "combo_level" // Максимальный уровень комбо
	CounterMineSpeed  CounterType = "mine_speed"  // Сессии короче порога
)

// Template — шаблон задания из фиксированного пула.
type Template struct {
	Code      string
	Type      CounterType
	Title     string
	Target    int64
	Threshold int // Порог длительности для mine_speed, секунды
	Reward    int64
}

// Challenge — сгенерированный экземпляр задания игрока.
type Challenge struct {
	ID        uuid.UUID   `db:"id"`
	UserID    int64       `db:"user_id"`
	Code      string      `db:"code"`
	Type      CounterType `db:"counter_type"`
	Title     string      `db:"title"`
	Target    int64       `db:"target"`
	Threshold int         `db:"threshold"`
	Reward    int64       `db:"reward"`
	Progress  int64       `db:"progress"` // Всегда в [0, Target]
	Completed bool        `db:"completed"`
	CreatedAt time.Time   `db:"created_at"`
	ExpiresAt time.Time   `db:"expires_at"`
}

// AchievementDef — определение достижения над пожизненными счётчиками.
type AchievementDef struct {
	Code   string
	Title  string
	Reward int64
	Check  func(c economy.LifetimeCounters) bool
}

// Store — долговечный слой заданий и достижений.
type Store interface {
	// GetLastRefresh возвращает время последней генерации набора
	// или нулевое время, если набора ещё не было.
	GetLastRefresh(ctx context.Context, userID int64) (time.Time, error)
	// ReplaceSet атомарно заменяет набор заданий игрока
	// и фиксирует время генерации.
	ReplaceSet(ctx context.Context, userID int64, refreshedAt time.Time, set []*Challenge) error
	GetChallenges(ctx context.Context, userID int64) ([]*Challenge, error)
	UpdateChallenge(ctx context.Context, ch *Challenge) error
	// UnlockAchievement возвращает true, если достижение открыто впервые.
	UnlockAchievement(ctx context.Context, userID int64, code string) (bool, error)
	UnlockedCodes(ctx context.Context, userID int64) (map[string]bool, error)
}
