// Package challenges — handlers.go обрабатывает команды !задания и !ачивки.
package challenges

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
)

// Handler обрабатывает команды трекера.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик трекера.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleChallenges обрабатывает команду !задания.
func (h *Handler) HandleChallenges(ctx context.Context, chatID, userID int64) {
	set, err := h.service.Challenges(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения заданий")
		h.sendMessage(chatID, "❌ Не удалось получить задания")
		return
	}
	if len(set) == 0 {
		h.sendMessage(chatID, "Задания сегодня выключены")
		return
	}

	var sb strings.Builder
	sb.WriteString("🎯 Задания на сегодня:\n\n")
	for _, ch := range set {
		mark := "▫️"
		if ch.Completed {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s — %d/%d (+%s)\n",
			mark, ch.Title, ch.Progress, ch.Target, common.FormatCrystals(ch.Reward)))
	}
	sb.WriteString(fmt.Sprintf("\n⏳ Обновление: %s", common.FormatDateTime(set[0].ExpiresAt)))

	h.sendMessage(chatID, sb.String())
}

// HandleAchievements обрабатывает команду !ачивки.
func (h *Handler) HandleAchievements(ctx context.Context, chatID, userID int64) {
	defs, unlocked, err := h.service.Achievements(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения достижений")
		h.sendMessage(chatID, "❌ Не удалось получить достижения")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏅 Достижения:\n\n")
	count := 0
	for _, def := range defs {
		mark := "🔒"
		if unlocked[def.Code] {
			mark = "🏅"
			count++
		}
		sb.WriteString(fmt.Sprintf("%s %s (+%s)\n", mark, def.Title, common.FormatCrystals(def.Reward)))
	}
	sb.WriteString(fmt.Sprintf("\nОткрыто: %d из %d", count, len(defs)))

	h.sendMessage(chatID, sb.String())
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
