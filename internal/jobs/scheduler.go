// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасная чистка протухших
// ожидающих наград и вечерний пост топа сезона в чат шахты.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/features/economy"
	"serotonyl.ru/mining-bot/internal/features/mining"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron           *cron.Cron
	miningManager  *mining.Manager
	economyService *economy.Service
	sendToChat     func(text string)
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(miningManager *mining.Manager, economyService *economy.Service, sendToChat func(text string)) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:           c,
		miningManager:  miningManager,
		economyService: economyService,
		sendToChat:     sendToChat,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ежечасная чистка протухших ожидающих наград
	s.cron.AddFunc("0 * * * *", func() {
		log.Debug("[CRON] Чистка протухших наград")
		if _, err := s.miningManager.SweepExpired(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка чистки")
		}
	})

	// Вечерний топ сезона в 21:00 по Москве
	s.cron.AddFunc("0 21 * * *", func() {
		log.Info("[CRON] Вечерний топ сезона")
		text, err := s.economyService.FormatTop(ctx, 10)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка формирования топа")
			return
		}
		s.sendToChat(text)
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
