// Package rewards — overload.go реализует перегрузки реактора.
// Перегрузка — редкое событие «риск/награда»: при успехе множит награду,
// при провале сжигает её полностью. Комиссия за вывод при этом
// всё равно платится — это осознанный дизайн, а не баг.
package rewards

import "math/rand"

// DefaultOverloadChance — вероятность перегрузки за сессию.
const DefaultOverloadChance = 0.08

// overloadTemplates — три шаблона перегрузки с разным балансом
// множителя и вероятности провала. Чем больше потенциальный куш,
// тем выше шанс всё потерять.
var overloadTemplates = []OverloadEvent{
	{Type: "перегрев буров", RewardMultiplier: 2.0, FailureChance: 0.25},
	{Type: "скачок напряжения", RewardMultiplier: 3.0, FailureChance: 0.45},
	{Type: "квантовый резонанс", RewardMultiplier: 5.0, FailureChance: 0.65},
}

// MaybeTriggerOverload разыгрывает перегрузку с вероятностью chance.
// При срабатывании равновероятно выбирает один из трёх шаблонов.
// Возвращает nil, если перегрузки нет.
func MaybeTriggerOverload(rng *rand.Rand, chance float64) *OverloadEvent {
	if chance <= 0 || rng.Float64() >= chance {
		return nil
	}

	ev := overloadTemplates[rng.Intn(len(overloadTemplates))]
	ev.Active = true
	return &ev
}

// ResolveOverload разрешает перегрузку в момент завершения сессии.
//
// Возвращает:
//   - multiplier: множитель награды (1.0 при провале — награду обнуляет вызывающий)
//   - failed: true, если перегрузка провалилась и награда сгорает
func ResolveOverload(ev *OverloadEvent, rng *rand.Rand) (multiplier float64, failed bool) {
	if ev == nil || !ev.Active {
		return 1.0, false
	}

	// Bernoulli(1 - FailureChance): успех или полная потеря
	if rng.Float64() < ev.FailureChance {
		return 1.0, true
	}
	return ev.RewardMultiplier, false
}
