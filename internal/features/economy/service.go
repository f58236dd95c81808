// Package economy — service.go содержит бизнес-логику экономики:
// балансы, комбо-множители и пожизненные счётчики для достижений.
package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// NameSource отдаёт отображаемое имя игрока для рейтингов.
type NameSource interface {
	DisplayName(ctx context.Context, userID int64) string
}

// Service управляет экономикой игроков.
type Service struct {
	repo  *Repository
	names NameSource
}

// NewService создаёт новый сервис экономики.
func NewService(repo *Repository, names NameSource) *Service {
	return &Service{repo: repo, names: names}
}

// EnsureStats регистрирует запись статистики для нового игрока.
func (s *Service) EnsureStats(ctx context.Context, userID int64) error {
	return s.repo.EnsureStats(ctx, userID)
}

// GetStats возвращает статистику игрока.
func (s *Service) GetStats(ctx context.Context, userID int64) (*PlayerStats, error) {
	return s.repo.GetStats(ctx, userID)
}

// RecordSessionComplete фиксирует завершённую сессию в счётчиках.
func (s *Service) RecordSessionComplete(ctx context.Context, userID int64, rare bool) error {
	return s.repo.RecordSessionComplete(ctx, userID, rare)
}

// ActiveComboMultiplier возвращает действующий множитель комбо игрока
// на момент now. Если окно комбо истекло — 1.0.
func (s *Service) ActiveComboMultiplier(ctx context.Context, userID int64, now time.Time) (float64, error) {
	stats, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		return 1.0, err
	}
	return rewards.ActiveMultiplier(stats.ComboState(), now), nil
}

// ComboStateOf возвращает сохранённое состояние комбо игрока.
func (s *Service) ComboStateOf(ctx context.Context, userID int64) (rewards.ComboState, error) {
	stats, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		return rewards.ComboState{Multiplier: 1.0}, err
	}
	return stats.ComboState(), nil
}

// Settle атомарно зачисляет подтверждённую награду.
func (s *Service) Settle(ctx context.Context, userID int64, reward, points int64, combo rewards.ComboState, description string) error {
	err := s.repo.Settle(ctx, userID, reward, points, combo, "claim_settled", description)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"reward":  reward,
		"points":  points,
		"combo":   combo.Level,
	}).Info("Награда зачислена")
	return nil
}

// AddCrystals начисляет кристаллы (призы заданий, достижения, выдача админом).
func (s *Service) AddCrystals(ctx context.Context, userID int64, amount int64, txType, description string) error {
	return s.repo.AddCrystals(ctx, userID, amount, txType, description)
}

// LifetimeCounters — снимок пожизненных счётчиков для оценки достижений.
type LifetimeCounters struct {
	Sessions  int64
	Earned    int64
	Rare      int64
	Claims    int64
	BestCombo int
}

// Lifetime возвращает пожизненные счётчики игрока.
func (s *Service) Lifetime(ctx context.Context, userID int64) (LifetimeCounters, error) {
	stats, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		return LifetimeCounters{}, err
	}
	return LifetimeCounters{
		Sessions:  stats.TotalSessions,
		Earned:    stats.TotalEarned,
		Rare:      stats.TotalRare,
		Claims:    stats.TotalClaims,
		BestCombo: stats.BestComboLevel,
	}, nil
}

// GetTransactions возвращает последние операции игрока.
func (s *Service) GetTransactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	return s.repo.GetTransactions(ctx, userID, limit)
}

// Top возвращает лучших игроков сезона.
func (s *Service) Top(ctx context.Context, limit int) ([]*PlayerStats, error) {
	return s.repo.Top(ctx, limit)
}

// FormatTop собирает текст рейтинга сезона для отправки в чат.
func (s *Service) FormatTop(ctx context.Context, limit int) (string, error) {
	top, err := s.repo.Top(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return "🏆 Сезон только начался — в рейтинге пока пусто!", nil
	}

	medals := []string{"🥇", "🥈", "🥉"}
	var sb strings.Builder
	sb.WriteString("🏆 Топ шахтёров сезона:\n\n")
	for i, stats := range top {
		prefix := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			prefix = medals[i]
		}
		name := fmt.Sprintf("игрок %d", stats.UserID)
		if s.names != nil {
			name = s.names.DisplayName(ctx, stats.UserID)
		}
		sb.WriteString(fmt.Sprintf("%s %s — %s очков\n", prefix, name, common.FormatNumber(stats.SeasonPoints)))
	}
	return sb.String(), nil
}
