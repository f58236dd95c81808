package challenges_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/challenges"
	"serotonyl.ru/mining-bot/internal/features/economy"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// memStore — хранилище заданий в памяти для тестов.
type memStore struct {
	mu          sync.Mutex
	lastRefresh map[int64]time.Time
	sets        map[int64][]*challenges.Challenge
	unlocked    map[int64]map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		lastRefresh: make(map[int64]time.Time),
		sets:        make(map[int64][]*challenges.Challenge),
		unlocked:    make(map[int64]map[string]bool),
	}
}

func (s *memStore) GetLastRefresh(_ context.Context, userID int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh[userID], nil
}

func (s *memStore) ReplaceSet(_ context.Context, userID int64, refreshedAt time.Time, set []*challenges.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*challenges.Challenge, len(set))
	for i, ch := range set {
		c := *ch
		cp[i] = &c
	}
	s.sets[userID] = cp
	s.lastRefresh[userID] = refreshedAt
	return nil
}

func (s *memStore) GetChallenges(_ context.Context, userID int64) ([]*challenges.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*challenges.Challenge, len(s.sets[userID]))
	for i, ch := range s.sets[userID] {
		c := *ch
		out[i] = &c
	}
	return out, nil
}

func (s *memStore) UpdateChallenge(_ context.Context, ch *challenges.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.sets[ch.UserID] {
		if existing.ID == ch.ID {
			c := *ch
			s.sets[ch.UserID][i] = &c
			return nil
		}
	}
	return nil
}

func (s *memStore) UnlockAchievement(_ context.Context, userID int64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked[userID] == nil {
		s.unlocked[userID] = make(map[string]bool)
	}
	if s.unlocked[userID][code] {
		return false, nil
	}
	s.unlocked[userID][code] = true
	return true, nil
}

func (s *memStore) UnlockedCodes(_ context.Context, userID int64) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.unlocked[userID]))
	for code := range s.unlocked[userID] {
		out[code] = true
	}
	return out, nil
}

// recordingPayer запоминает все выплаты.
type recordingPayer struct {
	mu       sync.Mutex
	payments []payment
}

type payment struct {
	userID int64
	amount int64
	txType string
	desc   string
}

func (p *recordingPayer) AddCrystals(_ context.Context, userID int64, amount int64, txType, desc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments = append(p.payments, payment{userID, amount, txType, desc})
	return nil
}

func (p *recordingPayer) byType(txType string) []payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []payment
	for _, pm := range p.payments {
		if pm.txType == txType {
			out = append(out, pm)
		}
	}
	return out
}

// fakeStats отдаёт настраиваемые пожизненные счётчики.
type fakeStats struct {
	mu       sync.Mutex
	counters economy.LifetimeCounters
}

func (f *fakeStats) Lifetime(context.Context, int64) (economy.LifetimeCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters, nil
}

func (f *fakeStats) set(c economy.LifetimeCounters) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = c
}

func newTestService(seed int64) (*challenges.Service, *clockwork.FakeClock, *memStore, *recordingPayer, *fakeStats) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	store := newMemStore()
	payer := &recordingPayer{}
	stats := &fakeStats{}
	svc := challenges.NewService(
		challenges.Config{RefreshPeriod: 24 * time.Hour, SetSize: 3, Enabled: true},
		store, payer, stats, common.LogNotifier{}, clock, rand.New(rand.NewSource(seed)),
	)
	return svc, clock, store, payer, stats
}

func TestChallengesGeneratesThreeFresh(t *testing.T) {
	svc, _, _, _, _ := newTestService(1)

	set, err := svc.Challenges(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, set, 3)

	codes := make(map[string]bool)
	for _, ch := range set {
		require.Zero(t, ch.Progress)
		require.False(t, ch.Completed)
		require.False(t, codes[ch.Code], "задания в наборе не повторяются")
		codes[ch.Code] = true
	}
}

func TestChallengesLazyRefresh(t *testing.T) {
	svc, clock, _, _, _ := newTestService(2)

	first, err := svc.Challenges(context.Background(), 100)
	require.NoError(t, err)

	// До истечения суток набор стабилен
	clock.Advance(23 * time.Hour)
	same, err := svc.Challenges(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, first[0].ID, same[0].ID)

	// После — набор заменяется
	clock.Advance(2 * time.Hour)
	fresh, err := svc.Challenges(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, fresh, 3)
	require.NotEqual(t, first[0].ID, fresh[0].ID)
	for _, ch := range fresh {
		require.Zero(t, ch.Progress)
	}
}

func TestSessionCompletedAdvancesCounters(t *testing.T) {
	svc, _, store, _, stats := newTestService(3)
	stats.set(economy.LifetimeCounters{Sessions: 50})

	before, err := svc.Challenges(context.Background(), 100)
	require.NoError(t, err)

	// Быстрая сессия с редкой жилой двигает mine_count, rare_drops и mine_speed
	svc.SessionCompleted(context.Background(), 100, 10, rewards.TierRare)

	after, err := store.GetChallenges(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, after, len(before))

	for i, ch := range after {
		switch ch.Type {
		case challenges.CounterMineCount, challenges.CounterRareDrops:
			require.Equal(t, before[i].Progress+1, ch.Progress, ch.Code)
		case challenges.CounterMineSpeed:
			if ch.Threshold >= 10 {
				require.Equal(t, before[i].Progress+1, ch.Progress, ch.Code)
			} else {
				require.Equal(t, before[i].Progress, ch.Progress, ch.Code)
			}
		default:
			// data_earned и combo_level двигаются только при выводе
			require.Equal(t, before[i].Progress, ch.Progress, ch.Code)
		}
	}
}

func TestChallengeRewardPaidOnce(t *testing.T) {
	svc, _, store, payer, _ := newTestService(4)

	_, err := svc.Challenges(context.Background(), 100)
	require.NoError(t, err)

	// Гоним сессии с запасом — все задания по счётчику сессий закроются
	for i := 0; i < 10; i++ {
		svc.SessionCompleted(context.Background(), 100, 10, rewards.TierEpic)
	}

	set, err := store.GetChallenges(context.Background(), 100)
	require.NoError(t, err)

	for _, ch := range set {
		require.LessOrEqual(t, ch.Progress, ch.Target, "прогресс зажат целью")
		if ch.Type == challenges.CounterMineCount {
			require.True(t, ch.Completed)
		}
	}

	// Каждое закрытое задание оплачено ровно один раз
	paid := payer.byType("challenge_reward")
	byDesc := make(map[string]int)
	for _, pm := range paid {
		byDesc[pm.desc]++
	}
	for desc, n := range byDesc {
		require.Equal(t, 1, n, desc)
	}
	completed := 0
	for _, ch := range set {
		if ch.Completed {
			completed++
		}
	}
	require.Len(t, paid, completed)
}

func TestClaimSettledAdvancesEarnedAndCombo(t *testing.T) {
	svc, _, store, _, _ := newTestService(5)

	_, err := svc.Challenges(context.Background(), 100)
	require.NoError(t, err)

	// Огромный вывод зажимается целью задания
	_, err = svc.ClaimSettled(context.Background(), 100, 100000, 3)
	require.NoError(t, err)

	set, err := store.GetChallenges(context.Background(), 100)
	require.NoError(t, err)
	for _, ch := range set {
		switch ch.Type {
		case challenges.CounterDataEarned:
			require.Equal(t, ch.Target, ch.Progress)
			require.True(t, ch.Completed)
		case challenges.CounterComboLevel:
			want := int64(3)
			if want > ch.Target {
				want = ch.Target
			}
			require.Equal(t, want, ch.Progress)
		}
	}
}

func TestAchievementsUnlockOnce(t *testing.T) {
	svc, _, _, payer, stats := newTestService(6)
	stats.set(economy.LifetimeCounters{Sessions: 1, Claims: 1})

	unlocked, err := svc.ClaimSettled(context.Background(), 100, 10, 0)
	require.NoError(t, err)
	require.Contains(t, unlocked, "Первая смена")

	// Повторная оценка тех же счётчиков ничего не открывает и не платит
	paidBefore := len(payer.byType("achievement_reward"))
	again, err := svc.ClaimSettled(context.Background(), 100, 10, 0)
	require.NoError(t, err)
	require.Empty(t, again)
	require.Len(t, payer.byType("achievement_reward"), paidBefore)
}
