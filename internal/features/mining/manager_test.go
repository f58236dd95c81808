package mining_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/mining"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// memStore — хранилище в памяти для тестов менеджера.
type memStore struct {
	mu      sync.Mutex
	pending map[int64]*mining.PendingReward
	logs    []*mining.LogEntry
}

func newMemStore() *memStore {
	return &memStore{pending: make(map[int64]*mining.PendingReward)}
}

func (s *memStore) SavePending(_ context.Context, rec *mining.PendingReward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.pending[rec.UserID] = &cp
	return nil
}

func (s *memStore) GetPending(_ context.Context, userID int64) (*mining.PendingReward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pending[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) DeletePending(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
	return nil
}

func (s *memStore) DeleteExpiredPending(_ context.Context, cutoff time.Time, exclude []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var deleted int64
	for id, rec := range s.pending {
		if rec.CreatedAt.Before(cutoff) && !excluded[id] {
			delete(s.pending, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) SaveLog(_ context.Context, entry *mining.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *memStore) GetLog(_ context.Context, userID int64, _ int) ([]*mining.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*mining.LogEntry
	for _, e := range s.logs {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// flakyStore ломает DeletePending по требованию.
type flakyStore struct {
	*memStore
	mu        sync.Mutex
	deleteErr error
}

func (s *flakyStore) DeletePending(ctx context.Context, userID int64) error {
	s.mu.Lock()
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.memStore.DeletePending(ctx, userID)
}

func (s *flakyStore) setDeleteErr(err error) {
	s.mu.Lock()
	s.deleteErr = err
	s.mu.Unlock()
}

// recordingNotifier запоминает, была ли ожидающая награда уже в хранилище
// в момент уведомления игрока.
type recordingNotifier struct {
	mu              sync.Mutex
	store           *memStore
	notified        bool
	pendingAtNotify bool
}

func (n *recordingNotifier) Notify(userID int64, _ common.Level, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec, _ := n.store.GetPending(context.Background(), userID)
	n.notified = true
	n.pendingAtNotify = rec != nil
}

// fixedCombo возвращает постоянный множитель комбо.
type fixedCombo struct{ mult float64 }

func (c fixedCombo) ActiveComboMultiplier(context.Context, int64, time.Time) (float64, error) {
	return c.mult, nil
}

func testConfig() mining.Config {
	return mining.Config{
		MinDurationSeconds: 5,
		MaxDurationSeconds: 60,
		BaseBonusMax:       10,
		ProgressTick:       250 * time.Millisecond,
		PendingTTL:         5 * time.Minute,
		OverloadChance:     0, // детерминизм: перегрузки отключены
	}
}

func newTestManager(t *testing.T, cfg mining.Config, seed int64) (*mining.Manager, *clockwork.FakeClock, *memStore) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()
	m := mining.NewManager(cfg, clock, rand.New(rand.NewSource(seed)), store, common.LogNotifier{})
	return m, clock, store
}

func TestStartDurationWithinBounds(t *testing.T) {
	m, _, _ := newTestManager(t, testConfig(), 1)

	for userID := int64(1); userID <= 200; userID++ {
		snap, err := m.Start(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, mining.StatusMining, snap.Status)
		sec := int(snap.Duration.Seconds())
		require.GreaterOrEqual(t, sec, 5)
		require.LessOrEqual(t, sec, 60)
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	m, _, _ := newTestManager(t, testConfig(), 2)

	_, err := m.Start(context.Background(), 42)
	require.NoError(t, err)

	snap, err := m.Start(context.Background(), 42)
	require.ErrorIs(t, err, common.ErrSessionActive)
	require.Equal(t, mining.StatusMining, snap.Status)
}

func TestCompletionPersistsPendingBeforeNotify(t *testing.T) {
	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()
	notifier := &recordingNotifier{store: store}
	m := mining.NewManager(cfg, clock, rand.New(rand.NewSource(3)), store, notifier)

	snap, err := m.Start(context.Background(), 7)
	require.NoError(t, err)

	clock.Advance(snap.Duration)

	require.Eventually(t, func() bool {
		s, err := m.Status(context.Background(), 7)
		return err == nil && s.Status == mining.StatusReadyToClaim
	}, 2*time.Second, 10*time.Millisecond)

	done, err := m.Status(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, float64(100), done.Progress)
	require.Positive(t, done.Pending)

	rec, err := store.GetPending(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, done.Pending, rec.Amount)
	require.Equal(t, done.Tier, rec.Tier)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.True(t, notifier.notified)
	require.True(t, notifier.pendingAtNotify, "награда должна быть в хранилище до уведомления")
}

func TestCompletionAppliesComboMultiplier(t *testing.T) {
	cfg := testConfig()
	cfg.BaseBonusMax = 0 // base == duration, считаем награду из снимка
	m, clock, _ := newTestManager(t, cfg, 4)
	m.SetComboSource(fixedCombo{mult: 2.0})

	snap, err := m.Start(context.Background(), 9)
	require.NoError(t, err)
	clock.Advance(snap.Duration)

	require.Eventually(t, func() bool {
		s, err := m.Status(context.Background(), 9)
		return err == nil && s.Status == mining.StatusReadyToClaim
	}, 2*time.Second, 10*time.Millisecond)

	done, err := m.Status(context.Background(), 9)
	require.NoError(t, err)

	base := int64(snap.Duration.Seconds())
	expected := int64(float64(rewards.ComputeReward(base, done.Tier)) * 2.0)
	require.Equal(t, expected, done.Pending)
	require.Equal(t, 2.0, done.ComboMult)
}

func TestProgressMonotonic(t *testing.T) {
	m, clock, _ := newTestManager(t, testConfig(), 5)

	snap, err := m.Start(context.Background(), 11)
	require.NoError(t, err)

	prev := float64(0)
	steps := int(snap.Duration / (500 * time.Millisecond))
	for i := 0; i < steps; i++ {
		clock.Advance(500 * time.Millisecond)
		require.Eventually(t, func() bool {
			s, err := m.Status(context.Background(), 11)
			return err == nil && s.Progress >= prev
		}, time.Second, 5*time.Millisecond)

		s, err := m.Status(context.Background(), 11)
		require.NoError(t, err)
		require.GreaterOrEqual(t, s.Progress, prev)
		require.LessOrEqual(t, s.Progress, float64(100))
		prev = s.Progress
	}
}

func TestCancelDiscardsPending(t *testing.T) {
	m, clock, store := newTestManager(t, testConfig(), 6)

	snap, err := m.Start(context.Background(), 13)
	require.NoError(t, err)
	clock.Advance(snap.Duration)

	require.Eventually(t, func() bool {
		s, err := m.Status(context.Background(), 13)
		return err == nil && s.Status == mining.StatusReadyToClaim
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Cancel(context.Background(), 13))

	rec, err := store.GetPending(context.Background(), 13)
	require.NoError(t, err)
	require.Nil(t, rec)

	_, err = m.Status(context.Background(), 13)
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestRestoreFreshPending(t *testing.T) {
	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()

	// Запись минутной давности: свежая (TTL 5 минут)
	require.NoError(t, store.SavePending(context.Background(), &mining.PendingReward{
		UserID:          21,
		Amount:          77,
		Tier:            rewards.TierRare,
		DurationSeconds: 30,
		CreatedAt:       clock.Now().Add(-time.Minute),
	}))

	m := mining.NewManager(cfg, clock, rand.New(rand.NewSource(7)), store, common.LogNotifier{})

	snap, err := m.Status(context.Background(), 21)
	require.NoError(t, err)
	require.Equal(t, mining.StatusReadyToClaim, snap.Status)
	require.Equal(t, int64(77), snap.Pending)
	require.Equal(t, rewards.TierRare, snap.Tier)
}

func TestRestoreDiscardsStalePending(t *testing.T) {
	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()

	require.NoError(t, store.SavePending(context.Background(), &mining.PendingReward{
		UserID:    22,
		Amount:    50,
		CreatedAt: clock.Now().Add(-time.Hour),
	}))

	m := mining.NewManager(cfg, clock, rand.New(rand.NewSource(8)), store, common.LogNotifier{})

	_, err := m.Status(context.Background(), 22)
	require.ErrorIs(t, err, common.ErrNoSession)

	rec, err := store.GetPending(context.Background(), 22)
	require.NoError(t, err)
	require.Nil(t, rec, "протухшая запись должна быть удалена")
}

func TestClaimLifecycle(t *testing.T) {
	m, clock, store := newTestManager(t, testConfig(), 9)

	snap, err := m.Start(context.Background(), 31)
	require.NoError(t, err)
	clock.Advance(snap.Duration)

	require.Eventually(t, func() bool {
		s, err := m.Status(context.Background(), 31)
		return err == nil && s.Status == mining.StatusReadyToClaim
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := m.BeginClaim(context.Background(), 31)
	require.NoError(t, err)
	require.NotNil(t, rec)

	// Конкурентный вывод отклоняется
	_, err = m.BeginClaim(context.Background(), 31)
	require.ErrorIs(t, err, common.ErrClaimInProgress)

	// Отмена во время вывода запрещена
	require.ErrorIs(t, m.Cancel(context.Background(), 31), common.ErrClaimInProgress)

	// Неудача возвращает сессию в ReadyToClaim, награда жива
	m.ReleaseClaim(31)
	s, err := m.Status(context.Background(), 31)
	require.NoError(t, err)
	require.Equal(t, mining.StatusReadyToClaim, s.Status)

	rec, err = m.BeginClaim(context.Background(), 31)
	require.NoError(t, err)

	require.NoError(t, m.FinishClaim(context.Background(), rec, "0xabc"))

	got, err := store.GetPending(context.Background(), 31)
	require.NoError(t, err)
	require.Nil(t, got)

	logs, err := store.GetLog(context.Background(), 31, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "0xabc", logs[0].TxHash)
	require.Equal(t, rec.Amount, logs[0].Amount)

	// Сессия освобождена, повторный вывод невозможен
	_, err = m.BeginClaim(context.Background(), 31)
	require.ErrorIs(t, err, common.ErrNothingToClaim)
}

func TestBeginClaimDuringMiningRejected(t *testing.T) {
	m, _, _ := newTestManager(t, testConfig(), 10)

	_, err := m.Start(context.Background(), 33)
	require.NoError(t, err)

	_, err = m.BeginClaim(context.Background(), 33)
	require.ErrorIs(t, err, common.ErrSessionActive)
}

func TestFinishClaimDeleteFailureBlocksRepeatClaim(t *testing.T) {
	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := &flakyStore{memStore: newMemStore()}
	m := mining.NewManager(cfg, clock, rand.New(rand.NewSource(12)), store, common.LogNotifier{})

	snap, err := m.Start(context.Background(), 51)
	require.NoError(t, err)
	clock.Advance(snap.Duration)

	require.Eventually(t, func() bool {
		s, err := m.Status(context.Background(), 51)
		return err == nil && s.Status == mining.StatusReadyToClaim
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := m.BeginClaim(context.Background(), 51)
	require.NoError(t, err)

	// Кристаллы зачислены, но запись не удалилась
	store.setDeleteErr(errors.New("бд недоступна"))
	require.ErrorIs(t, m.FinishClaim(context.Background(), rec, "0xdef"), common.ErrStorage)

	left, err := store.GetPending(context.Background(), 51)
	require.NoError(t, err)
	require.NotNil(t, left, "запись осталась висеть в БД")

	// Повторный вывод той же награды заблокирован — двойного зачисления нет
	_, err = m.BeginClaim(context.Background(), 51)
	require.ErrorIs(t, err, common.ErrNothingToClaim)

	// Чистка доудаляет запись, когда БД ожила
	store.setDeleteErr(nil)
	_, err = m.SweepExpired(context.Background())
	require.NoError(t, err)

	left, err = store.GetPending(context.Background(), 51)
	require.NoError(t, err)
	require.Nil(t, left)

	_, err = m.BeginClaim(context.Background(), 51)
	require.ErrorIs(t, err, common.ErrNothingToClaim)
}

func TestCancelDeleteFailureKeepsSessionGuarded(t *testing.T) {
	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := &flakyStore{memStore: newMemStore()}
	m := mining.NewManager(cfg, clock, rand.New(rand.NewSource(13)), store, common.LogNotifier{})

	snap, err := m.Start(context.Background(), 52)
	require.NoError(t, err)
	clock.Advance(snap.Duration)

	require.Eventually(t, func() bool {
		s, err := m.Status(context.Background(), 52)
		return err == nil && s.Status == mining.StatusReadyToClaim
	}, 2*time.Second, 10*time.Millisecond)

	// Отмена не состоялась: запись не удалилась, сессия остаётся в памяти
	store.setDeleteErr(errors.New("бд недоступна"))
	require.ErrorIs(t, m.Cancel(context.Background(), 52), common.ErrStorage)

	s, err := m.Status(context.Background(), 52)
	require.NoError(t, err)
	require.Equal(t, mining.StatusReadyToClaim, s.Status)

	// Повторная отмена после восстановления БД проходит целиком
	store.setDeleteErr(nil)
	require.NoError(t, m.Cancel(context.Background(), 52))

	rec, err := store.GetPending(context.Background(), 52)
	require.NoError(t, err)
	require.Nil(t, rec)

	_, err = m.Status(context.Background(), 52)
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestSweepExpiredKeepsLiveSessions(t *testing.T) {
	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()

	stale := clock.Now().Add(-time.Hour)
	require.NoError(t, store.SavePending(context.Background(), &mining.PendingReward{
		UserID: 41, Amount: 10, CreatedAt: stale,
	}))
	require.NoError(t, store.SavePending(context.Background(), &mining.PendingReward{
		UserID: 42, Amount: 20, CreatedAt: stale,
	}))

	m := mining.NewManager(cfg, clock, rand.New(rand.NewSource(11)), store, common.LogNotifier{})

	// У игрока 43 живая сессия в памяти — её запись трогать нельзя
	_, err := m.Start(context.Background(), 43)
	require.NoError(t, err)

	deleted, err := m.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	// Сессия игрока 43 не тронута
	s, err := m.Status(context.Background(), 43)
	require.NoError(t, err)
	require.Equal(t, mining.StatusMining, s.Status)
}
