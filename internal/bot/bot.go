// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go подключает обработчики игровых команд и запускает polling.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/bot/filters"
	"serotonyl.ru/mining-bot/internal/bot/middleware"
	"serotonyl.ru/mining-bot/internal/config"
	"serotonyl.ru/mining-bot/internal/features/admin"
	"serotonyl.ru/mining-bot/internal/features/challenges"
	"serotonyl.ru/mining-bot/internal/features/economy"
	"serotonyl.ru/mining-bot/internal/features/mining"
	"serotonyl.ru/mining-bot/internal/features/players"
	"serotonyl.ru/mining-bot/internal/features/settlement"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	playerHandler     *players.Handler
	economyHandler    *economy.Handler
	miningHandler     *mining.Handler
	settlementHandler *settlement.Handler
	challengeHandler  *challenges.Handler
	adminHandler      *admin.Handler

	playerService  *players.Service
	economyService *economy.Service

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	playerService *players.Service,
	playerHandler *players.Handler,
	economyService *economy.Service,
	economyHandler *economy.Handler,
	miningHandler *mining.Handler,
	settlementHandler *settlement.Handler,
	challengeHandler *challenges.Handler,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:               api,
		cfg:               cfg,
		chatFilter:        chatFilter,
		rateLimiter:       middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		playerHandler:     playerHandler,
		economyHandler:    economyHandler,
		miningHandler:     miningHandler,
		settlementHandler: settlementHandler,
		challengeHandler:  challengeHandler,
		adminHandler:      adminHandler,
		playerService:     playerService,
		economyService:    economyService,
		parser:            NewCommandParser(),
		inflight:          make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// Обрабатываем новых участников (событие вступления)
	if update.Message != nil && update.Message.NewChatMembers != nil {
		if update.Message.Chat != nil && update.Message.Chat.ID == b.cfg.MineChatID {
			b.handleNewPlayers(ctx, update.Message.NewChatMembers)
		}
		return
	}

	// Обрабатываем обычные сообщения
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message

	// Логируем входящее
	middleware.LogMessage(message)

	// Проверяем доступ (чат шахты или личка участника)
	if !b.chatFilter.CheckAccess(ctx, message) {
		return
	}

	// Rate limiting
	if message.From != nil && !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// Регистрация при первом сообщении — ошибки нельзя игнорировать
	if err := b.playerService.EnsurePlayer(ctx, userID,
		message.From.UserName, message.From.FirstName, message.From.LastName,
	); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsurePlayer failed")
	}
	if err := b.economyService.EnsureStats(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureStats failed")
	}

	// Парсим команду
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}

	b.routeCommand(ctx, chatID, userID, message.Chat.IsPrivate(), cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, isPrivate bool, cmd string, args []string) {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(chatID, helpText)

	// --- Игрок ---
	case "профиль":
		b.playerHandler.HandleProfile(ctx, chatID, userID)
	case "кошелёк", "кошелек":
		b.playerHandler.HandleWallet(ctx, chatID, userID, args)
	case "бур":
		b.playerHandler.HandleRig(ctx, chatID, userID, args)

	// --- Добыча ---
	case "копать":
		if b.cfg.FeatureMiningEnabled {
			b.miningHandler.HandleDig(ctx, chatID, userID)
		} else {
			b.sendMessage(chatID, "⛏ Шахта временно закрыта")
		}
	case "шахта":
		b.miningHandler.HandleMine(ctx, chatID, userID)
	case "отмена":
		b.miningHandler.HandleCancel(ctx, chatID, userID)
	case "забрать":
		b.settlementHandler.HandleClaim(ctx, chatID, userID)

	// --- Экономика ---
	case "баланс":
		b.economyHandler.HandleBalance(ctx, chatID, userID)
	case "история":
		b.economyHandler.HandleHistory(ctx, chatID, userID)
	case "комбо":
		b.economyHandler.HandleCombo(ctx, chatID, userID)
	case "топ":
		b.economyHandler.HandleTop(ctx, chatID)

	// --- Задания ---
	case "задания":
		if b.cfg.FeatureChallengesEnabled {
			b.challengeHandler.HandleChallenges(ctx, chatID, userID)
		} else {
			b.sendMessage(chatID, "🎯 Задания временно отключены")
		}
	case "ачивки":
		b.challengeHandler.HandleAchievements(ctx, chatID, userID)

	// --- Админка (только личка) ---
	case "login":
		if isPrivate {
			b.adminHandler.HandleLogin(ctx, chatID, userID, args)
		}
	case "logout":
		if isPrivate {
			b.adminHandler.HandleLogout(ctx, chatID, userID)
		}
	case "пауза":
		if isPrivate {
			b.adminHandler.HandlePause(ctx, chatID, userID)
		}
	case "старт":
		if isPrivate {
			b.adminHandler.HandleResume(ctx, chatID, userID)
		}
	case "выдать":
		if isPrivate {
			b.adminHandler.HandleGrant(ctx, chatID, userID, args)
		}
	case "игрок":
		if isPrivate {
			b.adminHandler.HandleInspect(ctx, chatID, userID, args)
		}
	}
}

const helpText = `⛏ Шахта кристаллов. Команды:

!копать — запустить сессию добычи
!шахта — прогресс текущей сессии
!забрать — вывести награду (комиссия сети)
!отмена — сбросить сессию и награду

!кошелёк 0x... — привязать кошелёк
!бур <id> — экипировать бур (!бур снять)
!профиль — твой профиль

!баланс, !история, !комбо, !топ
!задания, !ачивки`

// handleNewPlayers обрабатывает вступление новых участников.
func (b *Bot) handleNewPlayers(ctx context.Context, newMembers []tgbotapi.User) {
	for _, user := range newMembers {
		if err := b.playerService.HandleNewPlayer(ctx, user.ID, user.UserName, user.FirstName, user.LastName); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("HandleNewPlayer failed")
		}
		if err := b.economyService.EnsureStats(ctx, user.ID); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("EnsureStats failed")
		}

		log.WithField("user", user.UserName).Info("Новый игрок обработан")
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendMessageToUser отправляет сообщение пользователю в личку
// (уведомления ядра игры).
func (b *Bot) SendMessageToUser(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось отправить сообщение")
	}
}

// SendMessageToChat отправляет сообщение в чат шахты (итоги сезона).
func (b *Bot) SendMessageToChat(text string) {
	b.sendMessage(b.cfg.MineChatID, text)
}

// CommandParser парсит русские команды с префиксами !, . и /
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	text = strings.TrimSpace(text)
	parts := strings.Fields(text)

	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
