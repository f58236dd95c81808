// Package settlement реализует координатор вывода награды:
// многошаговую фиксацию добытых кристаллов через платную транзакцию
// в EVM-сети к адресу расчётного контракта.
// models.go описывает состояния попытки и интерфейсы внешних систем.
package settlement

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"serotonyl.ru/mining-bot/internal/features/mining"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// State — под-состояние попытки вывода. Попытка проходит состояния
// строго по порядку; любая ошибка завершает попытку, награда остаётся.
type State string

// Состояния попытки вывода.
const (
	StateVerifyNetwork State = "verify_network"
	StateVerifyBalance State = "verify_balance"
	StateEstimateFee   State = "estimate_fee"
	StateSubmit        State = "submit"
	StatePollConfirm   State = "poll_confirmation"
	StateSettled       State = "settled"
)

// Result — итог подтверждённого вывода.
type Result struct {
	TxHash   string
	Reward   int64
	Points   int64
	Combo    rewards.ComboState
	Unlocked []string // Свежеоткрытые достижения
}

// ChainClient — клиент EVM-сети. Набор методов совпадает с ethclient.Client,
// поэтому боевой привязкой служит стандартный ethclient.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account ethcommon.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
}

// Signer подписывает транзакции казначейского кошелька.
type Signer interface {
	Address() ethcommon.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// NetworkSwitcher выполняет попытку переключить кошелёк на нужную сеть.
// По несовпадению сети делается РОВНО одна такая попытка.
type NetworkSwitcher interface {
	SwitchNetwork(ctx context.Context, want *big.Int) error
}

// SessionManager — менеджер сессий добычи (вход/выход из Claiming).
type SessionManager interface {
	BeginClaim(ctx context.Context, userID int64) (*mining.PendingReward, error)
	ReleaseClaim(userID int64)
	FinishClaim(ctx context.Context, rec *mining.PendingReward, txHash string) error
}

// Ledger — экономика: зачисление награды и состояние комбо.
type Ledger interface {
	Settle(ctx context.Context, userID int64, reward, points int64, combo rewards.ComboState, description string) error
	ComboStateOf(ctx context.Context, userID int64) (rewards.ComboState, error)
}

// ClaimSink получает событие «вывод подтверждён» (трекер заданий).
type ClaimSink interface {
	ClaimSettled(ctx context.Context, userID int64, reward int64, comboLevel int) ([]string, error)
}

// Config — настройки координатора.
type Config struct {
	ChainID           *big.Int
	SettlementAddress ethcommon.Address
	Fee               *big.Int // Комиссия вывода, wei
	GasBuffer         *big.Int // Запас на газ сверх комиссии, wei
	PollInterval      time.Duration
	MaxWait           time.Duration
}
