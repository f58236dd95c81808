// Package filters ограничивает работу бота чатом шахты и личками
// его участников.
package filters

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/features/players"
)

// ChatFilter проверяет, откуда пришло сообщение.
type ChatFilter struct {
	mineChatID    int64
	playerService *players.Service
	bot           *tgbotapi.BotAPI
}

// NewChatFilter создаёт фильтр чатов.
func NewChatFilter(mineChatID int64, playerService *players.Service, bot *tgbotapi.BotAPI) *ChatFilter {
	return &ChatFilter{
		mineChatID:    mineChatID,
		playerService: playerService,
		bot:           bot,
	}
}

// CheckAccess решает, обрабатывать ли сообщение:
// чат шахты — всегда, личка — только для участников чата шахты.
func (f *ChatFilter) CheckAccess(ctx context.Context, message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (сервисное сообщение?)")
		return false
	}
	if f.mineChatID == 0 {
		log.WithField("component", "ChatFilter").Error("mineChatID равен 0 (ошибка конфигурации)")
		return false
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	logger := log.WithFields(log.Fields{
		"component":    "ChatFilter",
		"chat_id":      chatID,
		"chat_type":    message.Chat.Type,
		"user_id":      userID,
		"mine_chat_id": f.mineChatID,
	})

	// 1) Чат шахты
	if chatID == f.mineChatID {
		logger.Debug("allow: чат шахты")
		return true
	}

	// 2) Личка: сначала быстро по БД
	if message.Chat.IsPrivate() {
		isPlayer, err := f.playerService.IsPlayer(ctx, userID)
		if err != nil {
			logger.WithError(err).Error("проверка игрока не удалась (db)")
			return false
		}
		if isPlayer {
			logger.Debug("allow: личка зарегистрированного игрока")
			return true
		}

		// 2.1) БД не знает пользователя: проверяем членство через Telegram API
		cm, err := f.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: f.mineChatID,
				UserID: userID,
			},
		})
		if err != nil {
			logger.WithError(err).Error("проверка членства не удалась (telegram GetChatMember)")
			return false
		}

		switch cm.Status {
		case "creator", "administrator", "member", "restricted":
			if err := f.playerService.EnsurePlayer(
				ctx, userID,
				message.From.UserName,
				message.From.FirstName,
				message.From.LastName,
			); err != nil {
				logger.WithError(err).Warn("не удалось дорегистрировать игрока (пропускаем всё равно)")
			}
			logger.WithField("tg_status", cm.Status).Info("allow: личка участника чата шахты")
			return true

		default:
			logger.WithField("tg_status", cm.Status).Info("deny: не участник чата шахты")
			msg := tgbotapi.NewMessage(chatID, "❌ Бот работает только для участников чата шахты")
			if _, sendErr := f.bot.Send(msg); sendErr != nil {
				logger.WithError(sendErr).Warn("не удалось отправить отказ")
			}
			return false
		}
	}

	// 3) Остальные чаты игнорируем
	logger.Info("deny: не чат шахты и не личка")
	return false
}
