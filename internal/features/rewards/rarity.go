// Package rewards — rarity.go содержит розыгрыш тира жилы
// и детерминированный расчёт награды.
package rewards

import (
	"math"
	"math/rand"
)

// RollRarity разыгрывает тир жилы.
//
// Алгоритм:
//  1. Берём одно равномерное значение в [0, 100)
//  2. Идём по тирам в фиксированном порядке, накапливая вероятности
//  3. Возвращаем первый тир, чья накопленная граница >= выпавшего значения
//
// Проценты в tierTable в сумме дают ровно 100, поэтому возврат
// последнего тира «по остатку» недостижим при корректной таблице —
// это защитная заглушка.
func RollRarity(rng *rand.Rand) Tier {
	roll := rng.Float64() * 100

	cumulative := 0.0
	for i, spec := range tierTable {
		cumulative += spec.percent
		if roll <= cumulative {
			return Tier(i)
		}
	}

	// Недостижимо при сумме процентов 100 — страховка от ошибок конфигурации
	return TierCommon
}

// ComputeReward вычисляет награду за жилу: floor(base * множитель тира).
// Чистая функция: одинаковые входы всегда дают одинаковый результат.
func ComputeReward(base int64, tier Tier) int64 {
	return int64(math.Floor(float64(base) * tier.Multiplier()))
}

// SeasonPoints возвращает очки сезона за вывод награды:
// десятая часть награды плюс бонус за тир.
func SeasonPoints(tier Tier, reward int64) int64 {
	return reward/10 + tier.Points()
}
