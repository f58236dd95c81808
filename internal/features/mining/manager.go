// Package mining — manager.go содержит менеджер сессий.
// Менеджер держит активные сессии в памяти (одна не-Idle сессия на игрока),
// крутит таймеры через clockwork и переживает перезапуск бота благодаря
// записям об ожидающих наградах в БД.
package mining

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// ComboSource отдаёт действующий множитель комбо игрока.
type ComboSource interface {
	ActiveComboMultiplier(ctx context.Context, userID int64, now time.Time) (float64, error)
}

// StatsRecorder фиксирует завершённую сессию в пожизненных счётчиках.
type StatsRecorder interface {
	RecordSessionComplete(ctx context.Context, userID int64, rare bool) error
}

// SessionObserver получает событие о завершённой сессии
// (трекер заданий и достижений).
type SessionObserver interface {
	SessionCompleted(ctx context.Context, userID int64, durationSeconds int, tier rewards.Tier)
}

// Config — настройки менеджера сессий.
type Config struct {
	MinDurationSeconds int           // Нижняя граница длительности сессии
	MaxDurationSeconds int           // Верхняя граница длительности сессии
	BaseBonusMax       int64         // Случайный бонус к базовой награде: [0, max)
	ProgressTick       time.Duration // Шаг тикера прогресса
	PendingTTL         time.Duration // Свежесть записи об ожидающей награде
	OverloadChance     float64       // Вероятность перегрузки за сессию
}

// session — живая сессия в памяти. Все поля защищены мьютексом менеджера.
type session struct {
	userID     int64
	status     Status
	startedAt  time.Time
	duration   time.Duration
	baseReward int64
	tier       rewards.Tier
	overload   *rewards.OverloadEvent
	progress   float64
	throughput float64
	pending    int64
	comboMult  float64
	failed     bool
	// Вывод зачислен, но запись об ожидающей награде не удалилась из БД.
	// Сессия остаётся в памяти как заслон от повторного вывода,
	// пока чистка не доудалит запись.
	settled bool
	timer   clockwork.Timer
	done    chan struct{}
}

// stopTimers останавливает таймер завершения и тикеры сессии.
func (s *session) stopTimers() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

// Manager управляет сессиями добычи.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*session

	clock    clockwork.Clock
	rng      *rand.Rand
	store    Store
	notifier common.Notifier
	combo    ComboSource
	stats    StatsRecorder
	observer SessionObserver
	cfg      Config
}

// NewManager создаёт менеджер сессий.
func NewManager(cfg Config, clock clockwork.Clock, rng *rand.Rand, store Store, notifier common.Notifier) *Manager {
	if notifier == nil {
		notifier = common.LogNotifier{}
	}
	return &Manager{
		sessions: make(map[int64]*session),
		clock:    clock,
		rng:      rng,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
	}
}

// SetComboSource подключает источник множителя комбо.
func (m *Manager) SetComboSource(src ComboSource) { m.combo = src }

// SetStatsRecorder подключает счётчики статистики.
func (m *Manager) SetStatsRecorder(rec StatsRecorder) { m.stats = rec }

// SetObserver подключает трекер заданий.
func (m *Manager) SetObserver(obs SessionObserver) { m.observer = obs }

// Start запускает новую сессию добычи.
// Возвращает ErrSessionActive, если у игрока уже есть не-Idle сессия
// (в том числе восстановленная из записи об ожидающей награде).
func (m *Manager) Start(ctx context.Context, userID int64) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.restoreLocked(ctx, userID); existing != nil {
		return m.snapshotLocked(existing), common.ErrSessionActive
	}

	durSec := m.cfg.MinDurationSeconds
	if spread := m.cfg.MaxDurationSeconds - m.cfg.MinDurationSeconds; spread > 0 {
		durSec += m.rng.Intn(spread + 1)
	}
	duration := time.Duration(durSec) * time.Second

	base := int64(durSec)
	if m.cfg.BaseBonusMax > 0 {
		base += m.rng.Int63n(m.cfg.BaseBonusMax)
	}

	s := &session{
		userID:     userID,
		status:     StatusMining,
		startedAt:  m.clock.Now(),
		duration:   duration,
		baseReward: base,
		tier:       rewards.RollRarity(m.rng),
		overload:   rewards.MaybeTriggerOverload(m.rng, m.cfg.OverloadChance),
		comboMult:  1.0,
		done:       make(chan struct{}),
	}
	s.timer = m.clock.AfterFunc(duration, func() { m.complete(userID) })
	m.sessions[userID] = s
	go m.run(s)

	log.WithFields(log.Fields{
		"user_id":  userID,
		"duration": duration,
		"overload": s.overload != nil,
	}).Info("Сессия добычи запущена")

	return m.snapshotLocked(s), nil
}

// run крутит тикеры прогресса и «скорости добычи» до остановки сессии.
func (m *Manager) run(s *session) {
	m.mu.Lock()
	done := s.done
	m.mu.Unlock()
	if done == nil {
		return
	}

	progress := m.clock.NewTicker(m.cfg.ProgressTick)
	defer progress.Stop()
	speed := m.clock.NewTicker(time.Second)
	defer speed.Stop()

	for {
		select {
		case <-done:
			return
		case <-progress.Chan():
			m.mu.Lock()
			if s.status == StatusMining {
				elapsed := m.clock.Now().Sub(s.startedAt)
				p := float64(elapsed) / float64(s.duration) * 100
				if p > 100 {
					p = 100
				}
				// Прогресс только растёт
				if p > s.progress {
					s.progress = p
				}
			}
			m.mu.Unlock()
		case <-speed.Chan():
			m.mu.Lock()
			if s.status == StatusMining {
				base := float64(s.baseReward) / s.duration.Seconds()
				s.throughput = base * (0.8 + 0.4*m.rng.Float64())
			}
			m.mu.Unlock()
		}
	}
}

// complete завершает сессию по сработавшему таймеру: раскрывает тир,
// применяет комбо, разрешает перегрузку и пишет ожидающую награду в БД
// ДО того, как игроку сообщается, что награду можно забирать.
func (m *Manager) complete(userID int64) {
	ctx := context.Background()

	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok || s.status != StatusMining {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	reward := rewards.ComputeReward(s.baseReward, s.tier)

	comboMult := 1.0
	if m.combo != nil {
		mult, err := m.combo.ActiveComboMultiplier(ctx, userID, now)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось получить комбо, множитель 1.0")
		} else {
			comboMult = mult
		}
	}
	reward = int64(float64(reward) * comboMult)

	overloadMult, failed := rewards.ResolveOverload(s.overload, m.rng)
	if failed {
		reward = 0
	} else {
		reward = int64(float64(reward) * overloadMult)
	}

	s.stopTimers()
	s.progress = 100
	s.pending = reward
	s.comboMult = comboMult
	s.failed = failed

	rec := &PendingReward{
		UserID:          userID,
		Amount:          reward,
		Tier:            s.tier,
		DurationSeconds: int(s.duration.Seconds()),
		CreatedAt:       now,
	}
	if err := m.store.SavePending(ctx, rec); err != nil {
		// Сессия продолжает жить в памяти, запись допишется при выводе
		log.WithError(err).WithField("user_id", userID).Error("Не удалось сохранить ожидающую награду")
	}
	s.status = StatusReadyToClaim

	tier := s.tier
	durSec := int(s.duration.Seconds())
	overload := s.overload
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"user_id": userID,
		"tier":    tier.Name(),
		"reward":  reward,
		"combo":   comboMult,
		"failed":  failed,
	}).Info("Сессия добычи завершена")

	if m.stats != nil {
		if err := m.stats.RecordSessionComplete(ctx, userID, tier >= rewards.TierRare); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось обновить счётчики сессий")
		}
	}
	if m.observer != nil {
		m.observer.SessionCompleted(ctx, userID, durSec, tier)
	}

	m.notifyCompleted(userID, tier, reward, comboMult, overload, failed)
}

func (m *Manager) notifyCompleted(userID int64, tier rewards.Tier, reward int64, comboMult float64, overload *rewards.OverloadEvent, failed bool) {
	if failed {
		m.notifier.Notify(userID, common.LevelWarning, fmt.Sprintf(
			"Перегрузка «%s» провалилась — жила обрушилась, кристаллы сгорели.\nЗабрать пустую жилу: !забрать (комиссия спишется), сбросить: !отмена",
			overload.Type))
		return
	}

	text := fmt.Sprintf("%s Жила: %s! Добыто %s.", tier.Emoji(), tier.Name(), common.FormatCrystals(reward))
	if overload != nil {
		text += fmt.Sprintf("\n⚡ Перегрузка «%s» пережита: награда x%.1f!", overload.Type, overload.RewardMultiplier)
	}
	if comboMult > 1.0 {
		text += fmt.Sprintf("\n🔥 Комбо x%.1f учтено.", comboMult)
	}
	text += "\nЗабрать награду: !забрать"
	m.notifier.Notify(userID, common.LevelSuccess, text)
}

// Cancel отменяет сессию из любого не-Idle состояния, кроме активного
// вывода награды. Таймеры останавливаются, ожидающая награда удаляется.
// Запись удаляется ДО освобождения сессии: если удаление провалилось,
// сессия остаётся в памяти (отмена не состоялась), иначе отброшенная
// награда воскресла бы при следующем обращении.
func (m *Manager) Cancel(ctx context.Context, userID int64) error {
	m.mu.Lock()
	s := m.restoreLocked(ctx, userID)
	if s == nil {
		m.mu.Unlock()
		return common.ErrNoSession
	}
	if s.status == StatusClaiming {
		m.mu.Unlock()
		return common.ErrClaimInProgress
	}

	// Запись существует только у завершённой сессии
	if s.status == StatusReadyToClaim {
		if err := m.store.DeletePending(ctx, userID); err != nil {
			m.mu.Unlock()
			log.WithError(err).WithField("user_id", userID).Error("Не удалось удалить ожидающую награду при отмене")
			return fmt.Errorf("%w: %v", common.ErrStorage, err)
		}
	}

	s.stopTimers()
	delete(m.sessions, userID)
	m.mu.Unlock()

	log.WithField("user_id", userID).Info("Сессия отменена")
	return nil
}

// Status возвращает снимок сессии игрока.
// Возвращает ErrNoSession, если сессии нет (и нечего восстанавливать).
func (m *Manager) Status(ctx context.Context, userID int64) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.restoreLocked(ctx, userID)
	if s == nil {
		return Snapshot{Status: StatusIdle}, common.ErrNoSession
	}
	return m.snapshotLocked(s), nil
}

// BeginClaim переводит сессию в состояние Claiming и возвращает запись
// об ожидающей награде. Повторный вызов до завершения вывода
// возвращает ErrClaimInProgress.
func (m *Manager) BeginClaim(ctx context.Context, userID int64) (*PendingReward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.restoreLocked(ctx, userID)
	if s == nil {
		return nil, common.ErrNothingToClaim
	}
	if s.settled {
		// Награда уже зачислена, висит только неудалённая запись
		return nil, common.ErrNothingToClaim
	}
	switch s.status {
	case StatusMining:
		return nil, common.ErrSessionActive
	case StatusClaiming:
		return nil, common.ErrClaimInProgress
	}

	rec, err := m.store.GetPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	if rec == nil {
		// Запись потерялась при завершении (ошибка БД) — восстанавливаем
		// из живой сессии и пробуем дописать.
		rec = &PendingReward{
			UserID:          userID,
			Amount:          s.pending,
			Tier:            s.tier,
			DurationSeconds: int(s.duration.Seconds()),
			CreatedAt:       m.clock.Now(),
		}
		if err := m.store.SavePending(ctx, rec); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось дописать ожидающую награду")
		}
	}

	s.status = StatusClaiming
	return rec, nil
}

// ReleaseClaim возвращает сессию из Claiming в ReadyToClaim
// после неудачной попытки вывода. Награда остаётся доступной.
func (m *Manager) ReleaseClaim(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok && s.status == StatusClaiming {
		s.status = StatusReadyToClaim
	}
}

// FinishClaim завершает подтверждённый вывод: удаляет ожидающую награду,
// пишет журнал добычи и освобождает сессию (Idle).
// Вызывается только ПОСЛЕ успешного зачисления в БД.
// Запись удаляется ДО освобождения сессии: если удаление провалилось,
// сессия остаётся в памяти с пометкой settled и блокирует повторный
// вывод уже зачисленной награды, а запись доудалит SweepExpired.
func (m *Manager) FinishClaim(ctx context.Context, rec *PendingReward, txHash string) error {
	if err := m.store.DeletePending(ctx, rec.UserID); err != nil {
		m.mu.Lock()
		if s, ok := m.sessions[rec.UserID]; ok {
			s.settled = true
		}
		m.mu.Unlock()
		log.WithError(err).WithField("user_id", rec.UserID).Error("Не удалось удалить ожидающую награду после вывода")
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	m.mu.Lock()
	delete(m.sessions, rec.UserID)
	m.mu.Unlock()

	entry := &LogEntry{
		UserID:          rec.UserID,
		Amount:          rec.Amount,
		Tier:            rec.Tier,
		DurationSeconds: rec.DurationSeconds,
		TxHash:          txHash,
	}
	if err := m.store.SaveLog(ctx, entry); err != nil {
		log.WithError(err).WithField("user_id", rec.UserID).Error("Не удалось записать журнал добычи")
	}
	return nil
}

// SweepExpired удаляет протухшие записи об ожидающих наградах,
// кроме игроков с живыми сессиями в памяти. Записи уже зачисленных
// выводов (пометка settled) доудаляются здесь же. Вызывается по расписанию.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	exclude := make([]int64, 0, len(m.sessions))
	var settled []int64
	for id, s := range m.sessions {
		if s.settled {
			settled = append(settled, id)
			continue
		}
		exclude = append(exclude, id)
	}
	cutoff := m.clock.Now().Add(-m.cfg.PendingTTL)
	m.mu.Unlock()

	// Повтор неудавшейся очистки после зачисленного вывода
	for _, id := range settled {
		if err := m.store.DeletePending(ctx, id); err != nil {
			log.WithError(err).WithField("user_id", id).Error("Повторная очистка зачисленного вывода не удалась")
			continue
		}
		m.mu.Lock()
		if s, ok := m.sessions[id]; ok && s.settled {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		log.WithField("user_id", id).Info("Зачисленный вывод дочищен")
	}

	deleted, err := m.store.DeleteExpiredPending(ctx, cutoff, exclude)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.WithField("deleted", deleted).Info("Удалены протухшие ожидающие награды")
	}
	return deleted, nil
}

// restoreLocked возвращает живую сессию игрока, при необходимости
// восстанавливая её из записи об ожидающей награде (после перезапуска).
// Свежая запись даёт сессию ReadyToClaim, протухшая — удаляется.
// Вызывается строго под мьютексом.
func (m *Manager) restoreLocked(ctx context.Context, userID int64) *session {
	if s, ok := m.sessions[userID]; ok {
		return s
	}

	rec, err := m.store.GetPending(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось прочитать ожидающую награду")
		return nil
	}
	if rec == nil {
		return nil
	}

	if m.clock.Now().Sub(rec.CreatedAt) > m.cfg.PendingTTL {
		if err := m.store.DeletePending(ctx, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось удалить протухшую награду")
		}
		log.WithField("user_id", userID).Info("Протухшая ожидающая награда отброшена")
		return nil
	}

	s := &session{
		userID:    userID,
		status:    StatusReadyToClaim,
		startedAt: rec.CreatedAt,
		duration:  time.Duration(rec.DurationSeconds) * time.Second,
		tier:      rec.Tier,
		progress:  100,
		pending:   rec.Amount,
		comboMult: 1.0,
	}
	m.sessions[userID] = s
	log.WithField("user_id", userID).Info("Сессия восстановлена из ожидающей награды")
	return s
}

// snapshotLocked делает снимок сессии. Вызывается строго под мьютексом.
func (m *Manager) snapshotLocked(s *session) Snapshot {
	snap := Snapshot{
		Status:     s.status,
		Progress:   s.progress,
		Throughput: s.throughput,
		Duration:   s.duration,
		Pending:    s.pending,
		ComboMult:  s.comboMult,
		Failed:     s.failed,
	}
	if s.status != StatusMining {
		snap.Tier = s.tier
	}
	if s.status == StatusMining {
		remaining := s.duration - m.clock.Now().Sub(s.startedAt)
		if remaining < 0 {
			remaining = 0
		}
		snap.Remaining = remaining
	}
	if s.overload != nil {
		ev := *s.overload
		snap.Overload = &ev
	}
	return snap
}
