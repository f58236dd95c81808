package rewards

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMaybeTriggerOverloadFrequency: срабатывание сходится к заданной вероятности.
func TestMaybeTriggerOverloadFrequency(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	const n = 200000
	triggered := 0
	byType := make(map[string]int)
	for i := 0; i < n; i++ {
		if ev := MaybeTriggerOverload(rng, DefaultOverloadChance); ev != nil {
			triggered++
			byType[ev.Type]++
			require.True(t, ev.Active)
		}
	}

	got := float64(triggered) / n
	require.InDelta(t, DefaultOverloadChance, got, 0.005)

	// Шаблоны выбираются равновероятно
	for _, tmpl := range overloadTemplates {
		share := float64(byType[tmpl.Type]) / float64(triggered)
		require.InDeltaf(t, 1.0/3.0, share, 0.03, "шаблон %s", tmpl.Type)
	}
}

// TestMaybeTriggerOverloadDisabled: нулевой шанс полностью выключает событие.
func TestMaybeTriggerOverloadDisabled(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		require.Nil(t, MaybeTriggerOverload(rng, 0))
	}
}

// TestResolveOverload: частота провалов сходится к FailureChance шаблона,
// успех возвращает множитель шаблона.
func TestResolveOverload(t *testing.T) {
	for _, tmpl := range overloadTemplates {
		tmpl := tmpl
		t.Run(tmpl.Type, func(t *testing.T) {
			rng := rand.New(rand.NewSource(3))
			ev := tmpl
			ev.Active = true

			const n = 100000
			failures := 0
			for i := 0; i < n; i++ {
				mult, failed := ResolveOverload(&ev, rng)
				if failed {
					failures++
					require.Equal(t, 1.0, mult)
				} else {
					require.Equal(t, ev.RewardMultiplier, mult)
				}
			}

			got := float64(failures) / n
			require.InDelta(t, ev.FailureChance, got, 0.01)
		})
	}
}

// TestResolveOverloadNil: отсутствие события — нейтральный множитель.
func TestResolveOverloadNil(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	mult, failed := ResolveOverload(nil, rng)
	require.Equal(t, 1.0, mult)
	require.False(t, failed)

	inactive := &OverloadEvent{Type: "перегрев буров", RewardMultiplier: 2.0, FailureChance: 0.25}
	mult, failed = ResolveOverload(inactive, rng)
	require.Equal(t, 1.0, mult)
	require.False(t, failed)
}
