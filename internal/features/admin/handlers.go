// Package admin — handlers.go обрабатывает команды админ-панели.
// Все команды работают ТОЛЬКО в личных сообщениях после /login.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/economy"
	"serotonyl.ru/mining-bot/internal/features/players"
)

// Handler обрабатывает команды админ-панели.
type Handler struct {
	service *Service
	economy *economy.Service
	players *players.Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, eco *economy.Service, pl *players.Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, economy: eco, players: pl, bot: bot}
}

// HandleLogin обрабатывает команду /login <пароль>.
func (h *Handler) HandleLogin(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "Использование: /login <пароль>")
		return
	}

	err := h.service.Login(ctx, userID, strings.Join(args, " "))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotAdmin):
			h.sendMessage(chatID, "❌ У тебя нет прав администратора")
		case errors.Is(err, common.ErrTooManyAttempts):
			h.sendMessage(chatID, "❌ Слишком много попыток, подожди час")
		case errors.Is(err, common.ErrWrongPassword):
			h.sendMessage(chatID, "❌ Неверный пароль")
		default:
			log.WithError(err).Error("Ошибка входа в админку")
			h.sendMessage(chatID, "❌ Не удалось войти")
		}
		return
	}

	h.sendMessage(chatID, "✅ Вход выполнен. Команды: !пауза, !старт, !выдать <id> <сумма>, !игрок <id>, /logout")
}

// HandleLogout обрабатывает команду /logout.
func (h *Handler) HandleLogout(ctx context.Context, chatID, userID int64) {
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).Error("Ошибка выхода из админки")
		h.sendMessage(chatID, "❌ Не удалось выйти")
		return
	}
	h.sendMessage(chatID, "👋 Сессия завершена")
}

// HandlePause обрабатывает команду !пауза.
func (h *Handler) HandlePause(ctx context.Context, chatID, userID int64) {
	if !h.authorized(ctx, chatID, userID) {
		return
	}
	h.service.Pause()
	h.sendMessage(chatID, "⏸ Майнинг остановлен. Идущие сессии доработают до конца")
}

// HandleResume обрабатывает команду !старт.
func (h *Handler) HandleResume(ctx context.Context, chatID, userID int64) {
	if !h.authorized(ctx, chatID, userID) {
		return
	}
	h.service.Resume()
	h.sendMessage(chatID, "▶️ Майнинг возобновлён")
}

// HandleGrant обрабатывает команду !выдать <user_id> <сумма>.
func (h *Handler) HandleGrant(ctx context.Context, chatID, userID int64, args []string) {
	if !h.authorized(ctx, chatID, userID) {
		return
	}
	if len(args) < 2 {
		h.sendMessage(chatID, "Использование: !выдать <user_id> <сумма>")
		return
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendMessage(chatID, "❌ Некорректный user_id")
		return
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		h.sendMessage(chatID, "❌ Сумма должна быть положительным числом")
		return
	}

	desc := fmt.Sprintf("Выдача администратором %d", userID)
	if err := h.economy.AddCrystals(ctx, targetID, amount, "admin_grant", desc); err != nil {
		log.WithError(err).Error("Ошибка выдачи кристаллов")
		h.sendMessage(chatID, "❌ Не удалось выдать кристаллы")
		return
	}

	log.WithFields(log.Fields{
		"admin":  userID,
		"target": targetID,
		"amount": amount,
	}).Warn("Администратор выдал кристаллы")
	h.sendMessage(chatID, fmt.Sprintf("✅ Игроку %d выдано %s", targetID, common.FormatCrystals(amount)))
}

// HandleInspect обрабатывает команду !игрок <user_id>.
func (h *Handler) HandleInspect(ctx context.Context, chatID, userID int64, args []string) {
	if !h.authorized(ctx, chatID, userID) {
		return
	}
	if len(args) < 1 {
		h.sendMessage(chatID, "Использование: !игрок <user_id>")
		return
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendMessage(chatID, "❌ Некорректный user_id")
		return
	}

	p, err := h.players.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, common.ErrPlayerNotFound) {
			h.sendMessage(chatID, "❌ Игрок не найден")
			return
		}
		log.WithError(err).Error("Ошибка получения игрока")
		h.sendMessage(chatID, "❌ Не удалось получить игрока")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 %s (id %d)\n", p.DisplayName(), p.UserID))
	if p.WalletAddress != nil {
		sb.WriteString(fmt.Sprintf("💳 %s\n", *p.WalletAddress))
	}
	if p.RigTokenID != nil {
		sb.WriteString(fmt.Sprintf("⛏ Бур #%d\n", *p.RigTokenID))
	}

	stats, err := h.economy.GetStats(ctx, targetID)
	if err == nil {
		sb.WriteString(fmt.Sprintf("💎 %s\n", common.FormatCrystals(stats.Crystals)))
		sb.WriteString(fmt.Sprintf("🏆 Очки: %s, сессий: %d, выводов: %d",
			common.FormatNumber(stats.SeasonPoints), stats.TotalSessions, stats.TotalClaims))
	}

	h.sendMessage(chatID, sb.String())
}

// authorized проверяет живую сессию и ругается, если её нет.
func (h *Handler) authorized(ctx context.Context, chatID, userID int64) bool {
	ok, err := h.service.IsAuthorized(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки авторизации")
		h.sendMessage(chatID, "❌ Ошибка проверки авторизации")
		return false
	}
	if !ok {
		h.sendMessage(chatID, "🔒 Сначала войди: /login <пароль>")
		return false
	}
	return true
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
