// Package challenges — service.go содержит логику трекера.
// Набор заданий обновляется лениво: при первом обращении после истечения
// суток генерируются ровно три свежих задания из пула без повторов.
package challenges

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/economy"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// Payer начисляет кристаллы за выполненные задания и достижения.
type Payer interface {
	AddCrystals(ctx context.Context, userID int64, amount int64, txType, description string) error
}

// StatsSource отдаёт пожизненные счётчики для оценки достижений.
type StatsSource interface {
	Lifetime(ctx context.Context, userID int64) (economy.LifetimeCounters, error)
}

// Config — настройки трекера.
type Config struct {
	RefreshPeriod time.Duration // Период перегенерации набора
	SetSize       int           // Размер ежедневного набора
	Enabled       bool
}

// Service — трекер заданий и достижений.
type Service struct {
	mu       sync.Mutex // Сериализует ленивую перегенерацию набора
	store    Store
	payer    Payer
	stats    StatsSource
	notifier common.Notifier
	clock    clockwork.Clock
	rng      *rand.Rand
	cfg      Config
}

// NewService создаёт трекер заданий.
func NewService(cfg Config, store Store, payer Payer, stats StatsSource, notifier common.Notifier, clock clockwork.Clock, rng *rand.Rand) *Service {
	if notifier == nil {
		notifier = common.LogNotifier{}
	}
	return &Service{
		store:    store,
		payer:    payer,
		stats:    stats,
		notifier: notifier,
		clock:    clock,
		rng:      rng,
		cfg:      cfg,
	}
}

// ensureFresh гарантирует свежий набор заданий и возвращает его.
// Если с последней генерации прошло больше периода — набор заменяется
// тремя заданиями, выбранными из пула без повторов.
func (s *Service) ensureFresh(ctx context.Context, userID int64) ([]*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	lastRefresh, err := s.store.GetLastRefresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !lastRefresh.IsZero() && now.Sub(lastRefresh) < s.cfg.RefreshPeriod {
		return s.store.GetChallenges(ctx, userID)
	}

	size := s.cfg.SetSize
	if size > len(templatePool) {
		size = len(templatePool)
	}
	perm := s.rng.Perm(len(templatePool))

	set := make([]*Challenge, 0, size)
	for _, idx := range perm[:size] {
		tpl := templatePool[idx]
		set = append(set, &Challenge{
			ID:        uuid.New(),
			UserID:    userID,
			Code:      tpl.Code,
			Type:      tpl.Type,
			Title:     tpl.Title,
			Target:    tpl.Target,
			Threshold: tpl.Threshold,
			Reward:    tpl.Reward,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.RefreshPeriod),
		})
	}

	if err := s.store.ReplaceSet(ctx, userID, now, set); err != nil {
		return nil, err
	}
	log.WithField("user_id", userID).Info("Сгенерирован новый набор заданий")
	return set, nil
}

// Challenges возвращает актуальный набор заданий игрока.
func (s *Service) Challenges(ctx context.Context, userID int64) ([]*Challenge, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}
	return s.ensureFresh(ctx, userID)
}

// SessionCompleted обрабатывает событие «сессия завершена».
// Реализует интерфейс наблюдателя менеджера сессий.
func (s *Service) SessionCompleted(ctx context.Context, userID int64, durationSeconds int, tier rewards.Tier) {
	if !s.cfg.Enabled {
		return
	}

	set, err := s.ensureFresh(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось получить задания")
		return
	}

	for _, ch := range set {
		switch ch.Type {
		case CounterMineCount:
			s.advance(ctx, ch, ch.Progress+1)
		case CounterRareDrops:
			if tier >= rewards.TierRare {
				s.advance(ctx, ch, ch.Progress+1)
			}
		case CounterMineSpeed:
			if durationSeconds <= ch.Threshold {
				s.advance(ctx, ch, ch.Progress+1)
			}
		}
	}

	if unlocked, err := s.evaluateAchievements(ctx, userID); err == nil {
		for _, title := range unlocked {
			s.notifier.Notify(userID, common.LevelSuccess, "🏅 Достижение открыто: "+title)
		}
	}
}

// ClaimSettled обрабатывает событие «вывод подтверждён».
// Возвращает пачку свежеоткрытых достижений в порядке определения —
// координатор вывода включает их в итоговое сообщение.
func (s *Service) ClaimSettled(ctx context.Context, userID int64, reward int64, comboLevel int) ([]string, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	set, err := s.ensureFresh(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, ch := range set {
		switch ch.Type {
		case CounterDataEarned:
			s.advance(ctx, ch, ch.Progress+reward)
		case CounterComboLevel:
			if int64(comboLevel) > ch.Progress {
				s.advance(ctx, ch, int64(comboLevel))
			}
		}
	}

	return s.evaluateAchievements(ctx, userID)
}

// advance двигает прогресс задания: значение зажимается в [0, Target],
// при достижении цели задание закрывается и приз платится ровно один раз.
func (s *Service) advance(ctx context.Context, ch *Challenge, progress int64) {
	if ch.Completed {
		return
	}
	if progress > ch.Target {
		progress = ch.Target
	}
	if progress < ch.Progress {
		return
	}
	ch.Progress = progress

	justCompleted := ch.Progress >= ch.Target
	if justCompleted {
		ch.Completed = true
	}

	if err := s.store.UpdateChallenge(ctx, ch); err != nil {
		log.WithError(err).WithField("user_id", ch.UserID).Error("Не удалось обновить задание")
		return
	}

	if justCompleted {
		desc := fmt.Sprintf("Задание выполнено: %s", ch.Title)
		if err := s.payer.AddCrystals(ctx, ch.UserID, ch.Reward, "challenge_reward", desc); err != nil {
			log.WithError(err).WithField("user_id", ch.UserID).Error("Не удалось выплатить приз за задание")
			return
		}
		s.notifier.Notify(ch.UserID, common.LevelSuccess,
			fmt.Sprintf("🎯 %s\n+%s", ch.Title, common.FormatCrystals(ch.Reward)))
	}
}

// evaluateAchievements открывает достижения, условия которых выполнены.
// Открытие одноразовое и идемпотентное: повторная проверка уже открытого
// достижения ничего не делает и не платит.
func (s *Service) evaluateAchievements(ctx context.Context, userID int64) ([]string, error) {
	counters, err := s.stats.Lifetime(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []string
	for _, def := range achievementDefs {
		if !def.Check(counters) {
			continue
		}
		newly, err := s.store.UnlockAchievement(ctx, userID, def.Code)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось открыть достижение")
			continue
		}
		if !newly {
			continue
		}
		if err := s.payer.AddCrystals(ctx, userID, def.Reward, "achievement_reward", "Достижение: "+def.Title); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось выплатить приз за достижение")
		}
		unlocked = append(unlocked, def.Title)
	}
	return unlocked, nil
}

// Achievements возвращает определения достижений и статус их открытия.
func (s *Service) Achievements(ctx context.Context, userID int64) ([]AchievementDef, map[string]bool, error) {
	codes, err := s.store.UnlockedCodes(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return achievementDefs, codes, nil
}
