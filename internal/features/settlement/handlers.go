// Package settlement — handlers.go обрабатывает команду !забрать.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
)

// Handler обрабатывает команду вывода награды.
type Handler struct {
	coordinator *Coordinator
	bot         *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик вывода.
func NewHandler(coordinator *Coordinator, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{coordinator: coordinator, bot: bot}
}

// HandleClaim обрабатывает команду !забрать.
func (h *Handler) HandleClaim(ctx context.Context, chatID, userID int64) {
	result, err := h.coordinator.Claim(ctx, userID)
	if err != nil {
		h.sendMessage(chatID, claimErrorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Вывод подтверждён: +%s\n", common.FormatCrystals(result.Reward)))
	sb.WriteString(fmt.Sprintf("🏆 Очки сезона: +%s\n", common.FormatNumber(result.Points)))
	if result.Combo.Level > 0 {
		sb.WriteString(fmt.Sprintf("🔥 Комбо: уровень %d (x%.1f), серия %d\n",
			result.Combo.Level, result.Combo.Multiplier, result.Combo.Streak))
	}
	sb.WriteString(fmt.Sprintf("🔗 tx: %s", result.TxHash))
	for _, title := range result.Unlocked {
		sb.WriteString("\n🏅 Достижение открыто: " + title)
	}

	h.sendMessage(chatID, sb.String())
}

// claimErrorText переводит ошибку вывода в сообщение игроку.
func claimErrorText(err error) string {
	switch {
	case errors.Is(err, common.ErrNothingToClaim):
		return "Забирать нечего. Сначала добудь: !копать"
	case errors.Is(err, common.ErrSessionActive):
		return "⛏ Сессия ещё идёт, дождись завершения: !шахта"
	case errors.Is(err, common.ErrClaimInProgress):
		return "📤 Вывод уже выполняется, подожди"
	case errors.Is(err, common.ErrNetworkMismatch):
		return "❌ Узел смотрел не в ту сеть. Выполнено переключение — повтори !забрать; если не помогает, сообщи администратору"
	case errors.Is(err, common.ErrInsufficientBalance):
		return "❌ В казне не хватает средств на комиссию. Попробуй позже"
	case errors.Is(err, common.ErrEstimation):
		return "❌ Не удалось оценить комиссию сети. Попробуй позже"
	case errors.Is(err, common.ErrSubmissionRejected):
		return "❌ Отправка транзакции отклонена. Награда сохранена: !забрать"
	case errors.Is(err, common.ErrSubmissionFailed):
		return "❌ Сеть не приняла транзакцию. Награда сохранена: !забрать"
	case errors.Is(err, common.ErrConfirmationTimeout):
		return "⏳ Сеть не ответила вовремя. Исход неизвестен, награда сохранена — повтори позже: !забрать"
	case errors.Is(err, common.ErrTransactionReverted):
		return "❌ Транзакция отменена сетью (комиссия сгорела). Награда сохранена: !забрать"
	case errors.Is(err, common.ErrStorage):
		return "❌ Сбой при зачислении. Награда сохранена, повтори: !забрать"
	default:
		log.WithError(err).Error("Непредвиденная ошибка вывода")
		return "❌ Не удалось вывести награду"
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
