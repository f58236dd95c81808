// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, работа с временем.
package common

import (
	"fmt"
	"math"
	"time"
)

// PluralizeCrystals возвращает правильную форму слова «кристалл» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "кристалл" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "кристалла" (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → "кристаллов" (0, 5-20, 25-30, 100, ...)
//
// Примеры:
//
//	PluralizeCrystals(1)  → "кристалл"
//	PluralizeCrystals(3)  → "кристалла"
//	PluralizeCrystals(11) → "кристаллов"
//	PluralizeCrystals(21) → "кристалл"
func PluralizeCrystals(n int64) string {
	// Берём абсолютное значение для отрицательных чисел
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	// Единственное число: 1, 21, 31, 101 (но НЕ 11, 111)
	if lastDigit == 1 && lastTwoDigits != 11 {
		return "кристалл"
	}

	// Малое множественное: 2-4, 22-24, 32-34 (но НЕ 12-14)
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "кристалла"
	}

	// Большое множественное: 0, 5-20, 25-30, 100, ...
	return "кристаллов"
}

// FormatCrystals форматирует количество кристаллов в читабельную строку.
// Пример: FormatCrystals(150) → "150 кристаллов"
func FormatCrystals(amount int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(amount), PluralizeCrystals(amount))
}

// PluralizeSeconds возвращает правильную форму слова «секунда».
//
// Правила:
//   - 1, 21, 31 → "секунда"
//   - 2-4, 22-24 → "секунды"
//   - 5-20, 25-30 → "секунд"
func PluralizeSeconds(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "секунда"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "секунды"
	}
	return "секунд"
}

// PluralizeSessions возвращает правильную форму слова «сессия».
func PluralizeSessions(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "сессия"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "сессии"
	}
	return "сессий"
}

// GetMoscowTime возвращает текущее время в часовом поясе Москвы (Europe/Moscow).
// Используется для ночных фоновых задач (итоги сезона).
func GetMoscowTime() time.Time {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		// Если не удалось загрузить — используем UTC+3 вручную
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return time.Now().In(loc)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (день.месяц.год часы:минуты).
// Используется для отображения дат в истории добычи.
func FormatDateTime(t time.Time) string {
	loc, _ := time.LoadLocation("Europe/Moscow")
	return t.In(loc).Format("02.01.2006 15:04")
}
