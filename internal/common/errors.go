// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять игроку понятные сообщения.
package common

import "errors"

// Ошибки предусловий (запуск сессии невозможен)
var (
	// ErrNoWallet — к аккаунту не привязан кошелёк
	ErrNoWallet = errors.New("кошелёк не привязан")
	// ErrNoRig — не экипирован бур
	ErrNoRig = errors.New("бур не экипирован")
	// ErrSessionActive — у игрока уже идёт сессия майнинга
	ErrSessionActive = errors.New("сессия майнинга уже идёт")
	// ErrMiningPaused — майнинг отключён администратором
	ErrMiningPaused = errors.New("майнинг временно приостановлен")
	// ErrNoSession — у игрока нет активной сессии
	ErrNoSession = errors.New("нет активной сессии")
	// ErrPlayerNotFound — игрок не найден в базе
	ErrPlayerNotFound = errors.New("игрок не найден")
)

// Ошибки вывода награды (claim)
var (
	// ErrNothingToClaim — нет готовой к выводу награды
	ErrNothingToClaim = errors.New("нет награды к выводу")
	// ErrClaimInProgress — вывод уже выполняется, повторный запрещён
	ErrClaimInProgress = errors.New("вывод уже выполняется")
	// ErrNetworkMismatch — активная сеть не совпадает с требуемой
	ErrNetworkMismatch = errors.New("неверная сеть")
	// ErrInsufficientBalance — на кошельке не хватает средств на комиссию
	ErrInsufficientBalance = errors.New("недостаточно средств на комиссию")
	// ErrEstimation — не удалось оценить газ/цену газа
	ErrEstimation = errors.New("ошибка оценки комиссии")
	// ErrSubmissionRejected — отправка транзакции отклонена
	ErrSubmissionRejected = errors.New("отправка транзакции отклонена")
	// ErrSubmissionFailed — нода отвергла транзакцию
	ErrSubmissionFailed = errors.New("не удалось отправить транзакцию")
	// ErrConfirmationTimeout — подтверждение не получено за отведённое время.
	// Это НЕ провал: исход транзакции неизвестен, награда остаётся в ожидании.
	ErrConfirmationTimeout = errors.New("подтверждение не получено вовремя")
	// ErrTransactionReverted — транзакция попала в блок со статусом failed
	ErrTransactionReverted = errors.New("транзакция отменена сетью")
	// ErrStorage — ошибка долговременного хранилища
	ErrStorage = errors.New("ошибка хранилища")
)

// Ошибки экономики (кристаллы)
var (
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrInvalidAddress — строка не является адресом кошелька
	ErrInvalidAddress = errors.New("некорректный адрес кошелька")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)
