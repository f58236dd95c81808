// Package common — notify.go описывает интерфейс уведомлений.
// Ядро игры (сессии, вывод наград, задания) сообщает о каждом
// переходе состояния через Notifier; презентационный слой (бот)
// решает, как показать событие игроку. Ядро при этом не знает
// ничего про Telegram.
package common

import log "github.com/sirupsen/logrus"

// Level — уровень события для игрока.
type Level int

// Уровни событий
const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Emoji возвращает префикс-эмодзи для уровня.
func (l Level) Emoji() string {
	switch l {
	case LevelSuccess:
		return "✅"
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// Notifier доставляет событие игроку.
type Notifier interface {
	Notify(userID int64, level Level, text string)
}

// NotifierFunc — адаптер, чтобы обычная функция реализовывала Notifier.
// Используется при сборке приложения: бот передаёт сюда отправку сообщения.
type NotifierFunc func(userID int64, level Level, text string)

// Notify вызывает обёрнутую функцию.
func (f NotifierFunc) Notify(userID int64, level Level, text string) {
	f(userID, level, text)
}

// LogNotifier пишет события только в лог. Запасной вариант,
// когда бот ещё не поднят (и для тестов).
type LogNotifier struct{}

// Notify логирует событие.
func (LogNotifier) Notify(userID int64, level Level, text string) {
	log.WithFields(log.Fields{
		"user_id": userID,
		"level":   level,
	}).Info(text)
}
