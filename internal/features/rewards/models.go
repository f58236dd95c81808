// Package rewards реализует движок наград: редкость жилы, перегрузки
// реактора и комбо-серии. models.go описывает таблицы тиров и структуры.
//
// Все функции пакета чистые: случайность приходит снаружи через *rand.Rand,
// время — параметром. Это позволяет воспроизводить любой розыгрыш в тестах.
package rewards

import "time"

// Tier — тир редкости жилы. Шесть дискретных классов множителя награды.
type Tier int

// Тиры в порядке возрастания редкости.
const (
	TierCommon Tier = iota
	TierUncommon
	TierRare
	TierEpic
	TierLegendary
	TierMythic
)

// tierSpec — конфигурация одного тира.
type tierSpec struct {
	name       string
	emoji      string
	percent    float64 // Вероятность выпадения, %
	multiplier float64 // Множитель награды
	points     int64   // Бонусные очки сезона
}

// tierTable — тиры с вероятностями. Проценты обязаны в сумме давать
// ровно 100 — это проверяется тестом, а не кодом.
var tierTable = []tierSpec{
	{name: "обычный", emoji: "⚪", percent: 50.0, multiplier: 1.0, points: 1},
	{name: "необычный", emoji: "🟢", percent: 30.0, multiplier: 1.5, points: 2},
	{name: "редкий", emoji: "🔵", percent: 15.0, multiplier: 2.0, points: 5},
	{name: "эпический", emoji: "🟣", percent: 4.0, multiplier: 3.0, points: 10},
	{name: "легендарный", emoji: "🟠", percent: 0.9, multiplier: 5.0, points: 25},
	{name: "мифический", emoji: "🔴", percent: 0.1, multiplier: 10.0, points: 50},
}

// Name возвращает русское название тира.
func (t Tier) Name() string {
	if t < 0 || int(t) >= len(tierTable) {
		return "неизвестный"
	}
	return tierTable[t].name
}

// Emoji возвращает эмодзи тира для сообщений.
func (t Tier) Emoji() string {
	if t < 0 || int(t) >= len(tierTable) {
		return "⚪"
	}
	return tierTable[t].emoji
}

// Multiplier возвращает множитель награды тира.
func (t Tier) Multiplier() float64 {
	if t < 0 || int(t) >= len(tierTable) {
		return 1.0
	}
	return tierTable[t].multiplier
}

// Points возвращает бонусные очки сезона за тир.
func (t Tier) Points() int64 {
	if t < 0 || int(t) >= len(tierTable) {
		return 0
	}
	return tierTable[t].points
}

// OverloadEvent — перегрузка реактора: редкий модификатор риск/награда.
// Живёт только в рамках одной сессии: выпадает на старте,
// разрешается при завершении.
type OverloadEvent struct {
	Type             string  // Название события для сообщений
	RewardMultiplier float64 // Множитель награды при успехе
	FailureChance    float64 // Вероятность провала (награда обнуляется)
	Active           bool    // Событие активно в текущей сессии
}

// ComboState — состояние комбо-серии игрока.
// Серия растёт при последовательных выводах наград в пределах окна
// и сгорает, если пауза между выводами превысила окно.
type ComboState struct {
	Streak      int       // Длина серии (выводов подряд)
	Level       int       // Уровень комбо 0..4
	Multiplier  float64   // Множитель по уровню
	LastClaimAt time.Time // Время последнего вывода
	ExpiresAt   time.Time // Когда комбо сгорает (LastClaimAt + окно)
}
