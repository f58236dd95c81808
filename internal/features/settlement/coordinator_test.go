package settlement_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	apperrors "serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/mining"
	"serotonyl.ru/mining-bot/internal/features/rewards"
	"serotonyl.ru/mining-bot/internal/features/settlement"
)

// fakeChain — сценарный клиент сети для тестов координатора.
type fakeChain struct {
	mu            sync.Mutex
	chainID       *big.Int
	balance       *big.Int
	tipErr        error // ломает стратегию dynamic_fee
	sendErr       error
	estimateErr   error
	sent          []*types.Transaction
	receiptStatus uint64
	receiptAfter  int // сколько опросов вернуть NotFound перед квитанцией
	neverFound    bool
	polls         int
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeChain) BalanceAt(context.Context, ethcommon.Address, *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tipErr != nil {
		return nil, f.tipErr
	}
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 21000, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, ethcommon.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.neverFound {
		return nil, ethereum.NotFound
	}
	f.polls++
	if f.polls <= f.receiptAfter {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.receiptStatus, TxHash: txHash}, nil
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeSwitcher записывает попытки переключения сети и,
// если fixes=true, чинит сеть фейкового клиента.
type fakeSwitcher struct {
	mu    sync.Mutex
	chain *fakeChain
	fixes bool
	calls int
}

func (s *fakeSwitcher) SwitchNetwork(_ context.Context, want *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fixes {
		s.chain.mu.Lock()
		s.chain.chainID = new(big.Int).Set(want)
		s.chain.mu.Unlock()
	}
	return nil
}

// fakeManager имитирует менеджер сессий с наградой к выводу.
type fakeManager struct {
	mu         sync.Mutex
	rec        *mining.PendingReward
	claiming   bool
	released   int
	finished   int
	finishedTx string
}

func (m *fakeManager) BeginClaim(context.Context, int64) (*mining.PendingReward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, apperrors.ErrNothingToClaim
	}
	if m.claiming {
		return nil, apperrors.ErrClaimInProgress
	}
	m.claiming = true
	cp := *m.rec
	return &cp, nil
}

func (m *fakeManager) ReleaseClaim(int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claiming = false
	m.released++
}

func (m *fakeManager) FinishClaim(_ context.Context, _ *mining.PendingReward, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claiming = false
	m.rec = nil
	m.finished++
	m.finishedTx = txHash
	return nil
}

// fakeLedger записывает зачисления.
type fakeLedger struct {
	mu        sync.Mutex
	combo     rewards.ComboState
	settleErr error
	settled   int
	reward    int64
	points    int64
	newCombo  rewards.ComboState
}

func (l *fakeLedger) Settle(_ context.Context, _ int64, reward, points int64, combo rewards.ComboState, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settleErr != nil {
		return l.settleErr
	}
	l.settled++
	l.reward = reward
	l.points = points
	l.newCombo = combo
	return nil
}

func (l *fakeLedger) ComboStateOf(context.Context, int64) (rewards.ComboState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.combo, nil
}

// fakeSink записывает события вывода.
type fakeSink struct {
	mu       sync.Mutex
	events   int
	unlocked []string
}

func (s *fakeSink) ClaimSettled(context.Context, int64, int64, int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events++
	return s.unlocked, nil
}

type testSigner struct{ key *ecdsa.PrivateKey }

func newTestSigner(t *testing.T) testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testSigner{key: key}
}

func (s testSigner) Address() ethcommon.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s testSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

func testConfig() settlement.Config {
	return settlement.Config{
		ChainID:           big.NewInt(250),
		SettlementAddress: ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Fee:               big.NewInt(100),
		GasBuffer:         big.NewInt(50),
		PollInterval:      time.Millisecond,
		MaxWait:           50 * time.Millisecond,
	}
}

func pendingReward() *mining.PendingReward {
	return &mining.PendingReward{
		UserID:          7,
		Amount:          120,
		Tier:            rewards.TierRare,
		DurationSeconds: 30,
		CreatedAt:       time.Now(),
	}
}

func TestClaimNetworkMismatchTerminatesAfterOneSwitch(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(1), balance: big.NewInt(1000)}
	switcher := &fakeSwitcher{chain: chain, fixes: false}
	manager := &fakeManager{rec: pendingReward()}
	ledger := &fakeLedger{}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), switcher, manager, ledger, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrNetworkMismatch)
	require.Equal(t, 1, switcher.calls, "ровно одна попытка переключения")
	require.Zero(t, chain.sentCount(), "транзакция не отправляется в чужую сеть")
	require.Equal(t, 1, manager.released, "награда возвращается в ReadyToClaim")
	require.Zero(t, ledger.settled)
}

func TestClaimNetworkSwitchEndsAttempt(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(1), balance: big.NewInt(1000), receiptStatus: types.ReceiptStatusSuccessful}
	switcher := &fakeSwitcher{chain: chain, fixes: true}
	manager := &fakeManager{rec: pendingReward()}
	ledger := &fakeLedger{}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), switcher, manager, ledger, clockwork.NewRealClock())

	// Даже если переключение починило сеть, текущая попытка завершается:
	// транзакция не отправляется, награда возвращается в ReadyToClaim.
	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrNetworkMismatch)
	require.Equal(t, 1, switcher.calls)
	require.Zero(t, chain.sentCount(), "после переключения транзакция в той же попытке не отправляется")
	require.Equal(t, 1, manager.released)
	require.Zero(t, ledger.settled)

	// Повторный явный вызов уже в правильной сети проходит целиком
	result, err := c.Claim(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, switcher.calls, "переключение больше не требуется")
	require.Equal(t, 1, chain.sentCount())
	require.NotEmpty(t, result.TxHash)
	require.Equal(t, 1, ledger.settled)
}

func TestClaimInsufficientBalance(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(149)} // нужно 100+50
	manager := &fakeManager{rec: pendingReward()}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, &fakeLedger{}, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	require.Zero(t, chain.sentCount())
	require.Equal(t, 1, manager.released)
}

func TestClaimEstimationFailure(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(1000), estimateErr: context.DeadlineExceeded}
	manager := &fakeManager{rec: pendingReward()}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, &fakeLedger{}, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrEstimation)
	require.Zero(t, chain.sentCount())
}

func TestClaimFallsBackToLegacyStrategy(t *testing.T) {
	chain := &fakeChain{
		chainID:       big.NewInt(250),
		balance:       big.NewInt(1000),
		tipErr:        context.DeadlineExceeded, // dynamic_fee ломается
		receiptStatus: types.ReceiptStatusSuccessful,
	}
	manager := &fakeManager{rec: pendingReward()}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, &fakeLedger{}, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, chain.sentCount())
	require.Equal(t, uint8(types.LegacyTxType), chain.sent[0].Type())
}

func TestClaimRevertedKeepsReward(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(1000), receiptStatus: types.ReceiptStatusFailed}
	manager := &fakeManager{rec: pendingReward()}
	ledger := &fakeLedger{}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, ledger, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrTransactionReverted)
	require.Zero(t, ledger.settled, "отменённая транзакция ничего не зачисляет")
	require.Zero(t, manager.finished)
	require.Equal(t, 1, manager.released)
}

func TestClaimConfirmationTimeoutKeepsReward(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(1000), neverFound: true}
	manager := &fakeManager{rec: pendingReward()}
	ledger := &fakeLedger{}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, ledger, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrConfirmationTimeout)
	require.Zero(t, ledger.settled, "неоднозначный исход ничего не зачисляет")
	require.Zero(t, manager.finished, "награда не удаляется")
	require.Equal(t, 1, manager.released)
}

func TestClaimSuccessSettlesOnce(t *testing.T) {
	rec := pendingReward()
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(1000), receiptAfter: 2, receiptStatus: types.ReceiptStatusSuccessful}
	manager := &fakeManager{rec: rec}
	ledger := &fakeLedger{}
	sink := &fakeSink{unlocked: []string{"Первая смена"}}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, ledger, clockwork.NewRealClock())
	c.SetSink(sink)

	result, err := c.Claim(context.Background(), 7)
	require.NoError(t, err)

	require.Equal(t, rec.Amount, result.Reward)
	require.Equal(t, rewards.SeasonPoints(rec.Tier, rec.Amount), result.Points)
	require.Equal(t, 1, result.Combo.Streak, "первый вывод начинает серию")
	require.Equal(t, []string{"Первая смена"}, result.Unlocked)

	require.Equal(t, 1, ledger.settled)
	require.Equal(t, rec.Amount, ledger.reward)
	require.Equal(t, 1, manager.finished)
	require.Equal(t, result.TxHash, manager.finishedTx)
	require.Equal(t, 1, sink.events)

	// Повторный вывод после зачисления — награды больше нет
	_, err = c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrNothingToClaim)
	require.Equal(t, 1, ledger.settled, "двойного зачисления нет")
}

func TestClaimAdvancesComboWithinWindow(t *testing.T) {
	rec := pendingReward()
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(1000), receiptStatus: types.ReceiptStatusSuccessful}
	manager := &fakeManager{rec: rec}
	now := time.Now()
	ledger := &fakeLedger{combo: rewards.ComboState{
		Streak:      2,
		Level:       1,
		Multiplier:  1.5,
		LastClaimAt: now.Add(-time.Minute),
		ExpiresAt:   now.Add(time.Minute),
	}}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, ledger, clockwork.NewRealClock())

	result, err := c.Claim(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 3, result.Combo.Streak)
	require.Equal(t, 2, result.Combo.Level)
	require.Equal(t, 2.0, result.Combo.Multiplier)
}

func TestClaimLedgerFailureKeepsReward(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(1000), receiptStatus: types.ReceiptStatusSuccessful}
	manager := &fakeManager{rec: pendingReward()}
	ledger := &fakeLedger{settleErr: context.DeadlineExceeded}

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, ledger, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrStorage)
	require.Zero(t, manager.finished, "награда не удаляется при сбое зачисления")
	require.Equal(t, 1, manager.released)
}

func TestConcurrentClaimRejected(t *testing.T) {
	chain := &fakeChain{chainID: big.NewInt(250), balance: big.NewInt(1000), receiptStatus: types.ReceiptStatusSuccessful}
	manager := &fakeManager{rec: pendingReward()}
	manager.claiming = true // первый вывод уже в полёте

	c := settlement.NewCoordinator(testConfig(), chain, newTestSigner(t), &fakeSwitcher{chain: chain}, manager, &fakeLedger{}, clockwork.NewRealClock())

	_, err := c.Claim(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrClaimInProgress)
}
