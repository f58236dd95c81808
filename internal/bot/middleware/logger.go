// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Длиннее этого текст команды в лог не пишем: игровые команды короткие,
// а флуд резать на границе нет смысла целиком.
const logTextLimit = 50

// LogMessage логирует входящую команду игрока: кто, из какого чата и
// первые символы текста.
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.From == nil {
		return
	}

	text := message.Text
	if len(text) > logTextLimit {
		text = text[:logTextLimit] + "..."
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.UserName,
		"text":     text,
	}).Debug("Команда от игрока")
}
