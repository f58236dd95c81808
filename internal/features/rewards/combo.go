// Package rewards — combo.go содержит логику комбо-серий.
// Комбо растёт при последовательных выводах наград в пределах окна
// (120 секунд) и даёт множитель к награде следующих сессий.
package rewards

import "time"

// ComboWindow — окно, в течение которого серия не сгорает.
const ComboWindow = 120 * time.Second

// comboMultipliers — множители по уровням комбо 0..4.
var comboMultipliers = [...]float64{1.0, 1.5, 2.0, 3.0, 5.0}

// MaxComboLevel — максимальный уровень комбо.
const MaxComboLevel = len(comboMultipliers) - 1

// LevelForStreak возвращает уровень комбо для длины серии.
//
// Пороги:
//
//	серия < 2 → уровень 0
//	серия = 2 → уровень 1
//	серия = 3 → уровень 2
//	серия = 4 → уровень 3
//	серия >= 5 → уровень 4
func LevelForStreak(streak int) int {
	switch {
	case streak < 2:
		return 0
	case streak == 2:
		return 1
	case streak == 3:
		return 2
	case streak == 4:
		return 3
	default:
		return 4
	}
}

// ComboMultiplier возвращает множитель для уровня комбо.
func ComboMultiplier(level int) float64 {
	if level < 0 || level > MaxComboLevel {
		return 1.0
	}
	return comboMultipliers[level]
}

// UpdateCombo пересчитывает комбо в момент успешного вывода награды.
//
// Если серия жива (streak > 0 и окно не истекло) — серия растёт на 1.
// Иначе серия начинается заново: streak=1, уровень 0.
// Уровень — монотонная ступенчатая функция от длины серии.
func UpdateCombo(state ComboState, now time.Time) ComboState {
	streak := 1
	if state.Streak > 0 && now.Before(state.ExpiresAt) {
		streak = state.Streak + 1
	}

	level := LevelForStreak(streak)
	return ComboState{
		Streak:      streak,
		Level:       level,
		Multiplier:  ComboMultiplier(level),
		LastClaimAt: now,
		ExpiresAt:   now.Add(ComboWindow),
	}
}

// ActiveMultiplier возвращает действующий множитель комбо.
// Комбо неактивно (множитель 1.0), если окно истекло.
func ActiveMultiplier(state ComboState, now time.Time) float64 {
	if state.Streak == 0 || !now.Before(state.ExpiresAt) {
		return 1.0
	}
	return state.Multiplier
}
