// Package mining — handlers.go обрабатывает команды !копать, !шахта и !отмена.
package mining

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
)

// Handler обрабатывает команды добычи.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик добычи.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleDig обрабатывает команду !копать.
func (h *Handler) HandleDig(ctx context.Context, chatID, userID int64) {
	snap, err := h.service.StartSession(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrMiningPaused):
			h.sendMessage(chatID, "⏸ Шахта закрыта на техработы, загляни позже")
		case errors.Is(err, common.ErrNoWallet):
			h.sendMessage(chatID, "❌ Сначала привяжи кошелёк: !кошелёк 0x...")
		case errors.Is(err, common.ErrNoRig):
			h.sendMessage(chatID, "❌ Сначала экипируй бур: !бур <id>")
		case errors.Is(err, common.ErrSessionActive):
			if snap.Status == StatusReadyToClaim || snap.Status == StatusClaiming {
				h.sendMessage(chatID, "⛏ У тебя есть незабранная награда: !забрать (или !отмена)")
			} else {
				h.sendMessage(chatID, "⛏ Сессия уже идёт, проверь прогресс: !шахта")
			}
		default:
			log.WithError(err).Error("Ошибка запуска сессии")
			h.sendMessage(chatID, "❌ Не удалось запустить сессию")
		}
		return
	}

	text := fmt.Sprintf("⛏ Бур заведён! Добыча займёт %d %s.",
		int(snap.Duration.Seconds()), common.PluralizeSeconds(int(snap.Duration.Seconds())))
	if snap.Overload != nil {
		text += fmt.Sprintf("\n⚡ ПЕРЕГРУЗКА РЕАКТОРА: «%s»! Награда x%.1f при успехе, шанс провала %.0f%%.",
			snap.Overload.Type, snap.Overload.RewardMultiplier, snap.Overload.FailureChance*100)
	}
	h.sendMessage(chatID, text)
}

// HandleMine обрабатывает команду !шахта (статус текущей сессии).
func (h *Handler) HandleMine(ctx context.Context, chatID, userID int64) {
	snap, err := h.service.Status(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNoSession) {
			h.sendMessage(chatID, "Сессии нет. Начни копать: !копать")
			return
		}
		log.WithError(err).Error("Ошибка получения статуса сессии")
		h.sendMessage(chatID, "❌ Не удалось получить статус")
		return
	}

	var sb strings.Builder
	switch snap.Status {
	case StatusMining:
		sb.WriteString(fmt.Sprintf("⛏ Добыча идёт: %s %.0f%%\n", progressBar(snap.Progress), snap.Progress))
		sb.WriteString(fmt.Sprintf("⚙️ Скорость: %.1f GH/s\n", snap.Throughput))
		sb.WriteString(fmt.Sprintf("⏳ Осталось ~%d %s",
			int(snap.Remaining.Seconds()), common.PluralizeSeconds(int(snap.Remaining.Seconds()))))
		if snap.Overload != nil {
			sb.WriteString(fmt.Sprintf("\n⚡ Перегрузка «%s» активна!", snap.Overload.Type))
		}
	case StatusReadyToClaim:
		if snap.Failed {
			sb.WriteString("💥 Жила обрушилась, кристаллы сгорели. !забрать или !отмена")
		} else {
			sb.WriteString(fmt.Sprintf("%s Жила %s: %s готово к выводу.\nЗабрать: !забрать",
				snap.Tier.Emoji(), snap.Tier.Name(), common.FormatCrystals(snap.Pending)))
		}
	case StatusClaiming:
		sb.WriteString("📤 Вывод награды уже идёт, подожди подтверждения сети")
	default:
		sb.WriteString("Сессии нет. Начни копать: !копать")
	}

	h.sendMessage(chatID, sb.String())
}

// HandleCancel обрабатывает команду !отмена.
func (h *Handler) HandleCancel(ctx context.Context, chatID, userID int64) {
	err := h.service.Cancel(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNoSession):
			h.sendMessage(chatID, "Отменять нечего — сессии нет")
		case errors.Is(err, common.ErrClaimInProgress):
			h.sendMessage(chatID, "❌ Вывод уже отправлен в сеть, отменить нельзя")
		default:
			log.WithError(err).Error("Ошибка отмены сессии")
			h.sendMessage(chatID, "❌ Не удалось отменить сессию")
		}
		return
	}
	h.sendMessage(chatID, "🛑 Сессия отменена, награда сброшена")
}

// progressBar рисует десятисегментный индикатор прогресса.
func progressBar(percent float64) string {
	filled := int(percent / 10)
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", 10-filled)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
