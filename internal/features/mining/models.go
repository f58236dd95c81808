// Package mining реализует конечный автомат сессии добычи:
// Idle → Mining → ReadyToClaim → Claiming → Idle.
// models.go описывает статусы, записи об ожидающих наградах и журнал добычи.
package mining

import (
	"context"
	"time"

	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// Status — состояние сессии игрока.
type Status string

// Состояния конечного автомата сессии.
const (
	StatusIdle         Status = "idle"
	StatusMining       Status = "mining"
	StatusReadyToClaim Status = "ready_to_claim"
	StatusClaiming     Status = "claiming"
)

// PendingReward — запись об ожидающей вывода награде.
// Пишется в БД ДО того, как игроку сообщается о завершении сессии,
// и удаляется только после подтверждённого вывода (или отмены).
type PendingReward struct {
	UserID          int64        `db:"user_id"`
	Amount          int64        `db:"amount"`
	Tier            rewards.Tier `db:"tier"`
	DurationSeconds int          `db:"duration_seconds"`
	CreatedAt       time.Time    `db:"created_at"`
}

// LogEntry — запись журнала добычи. Создаётся при подтверждённом выводе.
type LogEntry struct {
	ID              int64        `db:"id"`
	UserID          int64        `db:"user_id"`
	Amount          int64        `db:"amount"`
	Tier            rewards.Tier `db:"tier"`
	DurationSeconds int          `db:"duration_seconds"`
	TxHash          string       `db:"tx_hash"`
	CreatedAt       time.Time    `db:"created_at"`
}

// Store — долговечный слой сессий: ожидающие награды и журнал добычи.
type Store interface {
	SavePending(ctx context.Context, rec *PendingReward) error
	// GetPending возвращает (nil, nil), если записи нет.
	GetPending(ctx context.Context, userID int64) (*PendingReward, error)
	DeletePending(ctx context.Context, userID int64) error
	// DeleteExpiredPending удаляет записи старше cutoff,
	// кроме игроков из exclude (их сессии живут в памяти).
	DeleteExpiredPending(ctx context.Context, cutoff time.Time, exclude []int64) (int64, error)
	SaveLog(ctx context.Context, entry *LogEntry) error
	GetLog(ctx context.Context, userID int64, limit int) ([]*LogEntry, error)
}

// Snapshot — моментальный снимок сессии для отображения.
type Snapshot struct {
	Status     Status
	Progress   float64 // 0..100, монотонно растёт
	Throughput float64 // Косметическая «скорость добычи», GH/s
	Duration   time.Duration
	Remaining  time.Duration
	Tier       rewards.Tier // Раскрывается только после завершения
	Pending    int64        // Итоговая награда (после завершения)
	ComboMult  float64      // Применённый множитель комбо
	Overload   *rewards.OverloadEvent
	Failed     bool // Перегрузка провалилась, награда сгорела
}
