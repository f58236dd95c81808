package rewards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevelForStreak(t *testing.T) {
	cases := []struct {
		streak int
		level  int
	}{
		{0, 0}, {1, 0}, {2, 1}, {3, 2}, {4, 3}, {5, 4}, {6, 4}, {100, 4},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.level, LevelForStreak(tc.streak), "серия %d", tc.streak)
	}
}

// TestUpdateComboGrows: вывод внутри окна растит серию и уровень.
func TestUpdateComboGrows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	state := UpdateCombo(ComboState{}, now)
	require.Equal(t, 1, state.Streak)
	require.Equal(t, 0, state.Level)
	require.Equal(t, 1.0, state.Multiplier)
	require.Equal(t, now.Add(ComboWindow), state.ExpiresAt)

	// Четыре вывода подряд с шагом 30 секунд — серия доходит до 5 и уровня 4
	for i := 0; i < 4; i++ {
		now = now.Add(30 * time.Second)
		state = UpdateCombo(state, now)
	}
	require.Equal(t, 5, state.Streak)
	require.Equal(t, 4, state.Level)
	require.Equal(t, 5.0, state.Multiplier)
}

// TestUpdateComboTimeout: пауза дольше окна сбрасывает серию на 1,
// независимо от прежней длины.
func TestUpdateComboTimeout(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := ComboState{
		Streak:      3,
		Level:       2,
		Multiplier:  2.0,
		LastClaimAt: now.Add(-150 * time.Second),
		ExpiresAt:   now.Add(-30 * time.Second), // окно истекло 30 секунд назад
	}

	next := UpdateCombo(state, now)
	require.Equal(t, 1, next.Streak)
	require.Equal(t, 0, next.Level)
	require.Equal(t, 1.0, next.Multiplier)
}

// TestUpdateComboExactBoundary: ровно на границе окна комбо уже мертво.
func TestUpdateComboExactBoundary(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := UpdateCombo(ComboState{}, start)

	next := UpdateCombo(state, state.ExpiresAt)
	require.Equal(t, 1, next.Streak)
}

func TestActiveMultiplier(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := ComboState{
		Streak:     4,
		Level:      3,
		Multiplier: 3.0,
		ExpiresAt:  now.Add(60 * time.Second),
	}

	require.Equal(t, 3.0, ActiveMultiplier(state, now))
	// После истечения окна множитель единичный
	require.Equal(t, 1.0, ActiveMultiplier(state, now.Add(61*time.Second)))
	// Пустое состояние неактивно
	require.Equal(t, 1.0, ActiveMultiplier(ComboState{}, now))
}
