// Package common — pluralize.go содержит вспомогательные функции
// для правильного склонения русских числительных.
// Основная логика плюрализации реализована в helpers.go,
// этот файл экспортирует дополнительные утилиты.
package common

import "fmt"

// FormatCrystalsAmount создаёт строку вида "+100 кристаллов" или "-50 кристаллов".
// Знак «+» или «-» добавляется автоматически.
//
// Примеры:
//
//	FormatCrystalsAmount(100)  → "+100 кристаллов"
//	FormatCrystalsAmount(-50)  → "-50 кристаллов"
//	FormatCrystalsAmount(1)    → "+1 кристалл"
func FormatCrystalsAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d %s", amount, PluralizeCrystals(amount))
	}
	return fmt.Sprintf("%d %s", amount, PluralizeCrystals(amount))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	// Простая реализация для чисел до миллиарда
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
