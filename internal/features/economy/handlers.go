// Package economy — handlers.go обрабатывает команды
// !баланс, !история, !комбо и !топ.
package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// Handler обрабатывает команды экономики.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик экономики.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleBalance обрабатывает команду !баланс.
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	stats, err := h.service.GetStats(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения статистики")
		h.sendMessage(chatID, "❌ Не удалось получить баланс")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💎 Баланс: %s\n", common.FormatCrystals(stats.Crystals)))
	sb.WriteString(fmt.Sprintf("🏆 Очки сезона: %s\n", common.FormatNumber(stats.SeasonPoints)))
	sb.WriteString(fmt.Sprintf("⛏ Сессий: %s\n", common.FormatNumber(stats.TotalSessions)))
	sb.WriteString(fmt.Sprintf("✨ Редких жил: %s\n", common.FormatNumber(stats.TotalRare)))
	sb.WriteString(fmt.Sprintf("📤 Выводов: %s", common.FormatNumber(stats.TotalClaims)))

	h.sendMessage(chatID, sb.String())
}

// HandleCombo обрабатывает команду !комбо.
func (h *Handler) HandleCombo(ctx context.Context, chatID, userID int64) {
	stats, err := h.service.GetStats(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения статистики")
		h.sendMessage(chatID, "❌ Не удалось получить комбо")
		return
	}

	state := stats.ComboState()
	now := common.GetMoscowTime()
	mult := rewards.ActiveMultiplier(state, now)

	var sb strings.Builder
	if mult > 1.0 {
		remaining := state.ExpiresAt.Sub(now).Round(time.Second)
		sb.WriteString(fmt.Sprintf("🔥 Комбо x%.1f (уровень %d, серия %d)\n", mult, state.Level, state.Streak))
		sb.WriteString(fmt.Sprintf("⏳ Истекает через %s", common.PluralizeSeconds(int(remaining.Seconds()))))
	} else {
		sb.WriteString("Комбо не активно. Выводи награды подряд, чтобы разогнать множитель!")
	}
	if stats.BestComboLevel > 0 {
		sb.WriteString(fmt.Sprintf("\n🏅 Рекорд: уровень %d", stats.BestComboLevel))
	}

	h.sendMessage(chatID, sb.String())
}

// HandleHistory обрабатывает команду !история.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	transactions, err := h.service.GetTransactions(ctx, userID, 10)
	if err != nil {
		log.WithError(err).Error("Ошибка получения истории")
		h.sendMessage(chatID, "❌ Не удалось получить историю")
		return
	}

	if len(transactions) == 0 {
		h.sendMessage(chatID, "История пуста. Начни копать: !копать")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Последние операции:\n\n")
	for _, t := range transactions {
		sign := "+"
		if t.Amount < 0 {
			sign = ""
		}
		sb.WriteString(fmt.Sprintf("%s  %s%d 💎 — %s\n",
			common.FormatDateTime(t.CreatedAt), sign, t.Amount, t.Description))
	}

	h.sendMessage(chatID, sb.String())
}

// HandleTop обрабатывает команду !топ.
func (h *Handler) HandleTop(ctx context.Context, chatID int64) {
	text, err := h.service.FormatTop(ctx, 10)
	if err != nil {
		log.WithError(err).Error("Ошибка получения топа")
		h.sendMessage(chatID, "❌ Не удалось получить топ")
		return
	}
	h.sendMessage(chatID, text)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
