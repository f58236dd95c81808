// Package settlement — coordinator.go ведёт попытку вывода по состояниям:
// VerifyNetwork → VerifyBalance → EstimateFee → Submit → PollConfirmation
// → Settle. Любая ошибка завершает попытку, награда остаётся доступной;
// зачисление происходит ТОЛЬКО после подтверждения сети.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	apperrors "serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/features/mining"
	"serotonyl.ru/mining-bot/internal/features/rewards"
)

// Coordinator выполняет выводы наград.
type Coordinator struct {
	client   ChainClient
	signer   Signer
	switcher NetworkSwitcher
	manager  SessionManager
	ledger   Ledger
	sink     ClaimSink
	notifier apperrors.Notifier
	clock    clockwork.Clock
	cfg      Config
}

// NewCoordinator создаёт координатор вывода.
func NewCoordinator(cfg Config, client ChainClient, signer Signer, switcher NetworkSwitcher,
	manager SessionManager, ledger Ledger, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		client:   client,
		signer:   signer,
		switcher: switcher,
		manager:  manager,
		ledger:   ledger,
		notifier: apperrors.LogNotifier{},
		clock:    clock,
		cfg:      cfg,
	}
}

// SetSink подключает трекер заданий.
func (c *Coordinator) SetSink(sink ClaimSink) { c.sink = sink }

// SetNotifier подключает доставку событий игроку.
func (c *Coordinator) SetNotifier(n apperrors.Notifier) {
	if n != nil {
		c.notifier = n
	}
}

// Claim выполняет вывод награды игрока. Конкурентный вывод того же
// игрока отклоняется менеджером сессий (ErrClaimInProgress).
func (c *Coordinator) Claim(ctx context.Context, userID int64) (*Result, error) {
	rec, err := c.manager.BeginClaim(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := c.attempt(ctx, userID, rec)
	if err != nil {
		// Награда остаётся: сессия возвращается в ReadyToClaim,
		// запись об ожидающей награде не трогается.
		c.manager.ReleaseClaim(userID)
		return nil, err
	}
	return result, nil
}

// attempt проводит одну попытку вывода через все под-состояния.
func (c *Coordinator) attempt(ctx context.Context, userID int64, rec *mining.PendingReward) (*Result, error) {
	logger := log.WithFields(log.Fields{"user_id": userID, "amount": rec.Amount})

	// --- VerifyNetwork ---
	logger.WithField("state", StateVerifyNetwork).Debug("Проверка сети")
	if err := c.verifyNetwork(ctx); err != nil {
		return nil, err
	}

	// --- VerifyBalance ---
	logger.WithField("state", StateVerifyBalance).Debug("Проверка баланса")
	if err := c.verifyBalance(ctx); err != nil {
		return nil, err
	}

	// --- EstimateFee ---
	logger.WithField("state", StateEstimateFee).Debug("Оценка комиссии")
	env, err := c.buildEnv(ctx)
	if err != nil {
		return nil, err
	}

	// --- Submit ---
	logger.WithField("state", StateSubmit).Debug("Отправка транзакции")
	tx, err := c.submit(ctx, env)
	if err != nil {
		return nil, err
	}
	logger = logger.WithField("tx", tx.Hash().Hex())
	logger.Info("Транзакция вывода отправлена")

	// --- PollConfirmation ---
	logger.WithField("state", StatePollConfirm).Debug("Ожидание подтверждения")
	if err := c.pollConfirmation(ctx, tx); err != nil {
		return nil, err
	}

	// --- Settle ---
	result, err := c.settle(ctx, userID, rec, tx.Hash().Hex())
	if err != nil {
		return nil, err
	}
	logger.WithField("state", StateSettled).Info("Вывод подтверждён и зачислен")
	return result, nil
}

// verifyNetwork сверяет сеть узла с ожидаемой. По несовпадению делает
// РОВНО одну попытку переключения, и НЕЗАВИСИМО от её исхода текущая
// попытка вывода завершается ErrNetworkMismatch: комиссия и газ нельзя
// брать из данных, собранных до переключения. Игрок вызывает !забрать
// заново уже в правильной сети.
func (c *Coordinator) verifyNetwork(ctx context.Context) error {
	got, err := c.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrNetworkMismatch, err)
	}
	if got.Cmp(c.cfg.ChainID) == 0 {
		return nil
	}

	log.WithFields(log.Fields{
		"want": c.cfg.ChainID.String(),
		"got":  got.String(),
	}).Warn("Сеть не совпадает, пробуем переключить")

	if err := c.switcher.SwitchNetwork(ctx, c.cfg.ChainID); err != nil {
		return fmt.Errorf("%w: переключение не удалось: %v", apperrors.ErrNetworkMismatch, err)
	}
	return apperrors.ErrNetworkMismatch
}

// verifyBalance проверяет, что кошелёк покрывает комиссию плюс запас на газ.
func (c *Coordinator) verifyBalance(ctx context.Context) error {
	balance, err := c.client.BalanceAt(ctx, c.signer.Address(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInsufficientBalance, err)
	}
	need := new(big.Int).Add(c.cfg.Fee, c.cfg.GasBuffer)
	if balance.Cmp(need) < 0 {
		return apperrors.ErrInsufficientBalance
	}
	return nil
}

// buildEnv собирает окружение отправки: свежий лимит газа и nonce.
func (c *Coordinator) buildEnv(ctx context.Context) (*txEnv, error) {
	from := c.signer.Address()
	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &c.cfg.SettlementAddress,
		Value: c.cfg.Fee,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEstimation, err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEstimation, err)
	}

	return &txEnv{
		client:   c.client,
		signer:   c.signer,
		chainID:  c.cfg.ChainID,
		to:       c.cfg.SettlementAddress,
		value:    c.cfg.Fee,
		gasLimit: gasLimit,
		nonce:    nonce,
	}, nil
}

// submit пробует стратегии отправки по порядку.
func (c *Coordinator) submit(ctx context.Context, env *txEnv) (*types.Transaction, error) {
	var lastErr error
	for _, strat := range defaultStrategies() {
		tx, err := strat.buildAndSend(ctx, env)
		if err == nil {
			return tx, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrSubmissionRejected, err)
		}
		log.WithError(err).WithField("strategy", strat.name()).Warn("Стратегия отправки не сработала")
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", apperrors.ErrSubmissionFailed, lastErr)
}

// pollConfirmation опрашивает сеть до подтверждения в пределах бюджета.
// Таймаут — неоднозначный исход: транзакция МОГЛА пройти, поэтому
// награда сохраняется, а не помечается проваленной.
func (c *Coordinator) pollConfirmation(ctx context.Context, tx *types.Transaction) error {
	deadline := c.clock.Now().Add(c.cfg.MaxWait)
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", apperrors.ErrConfirmationTimeout, ctx.Err())
		case <-ticker.Chan():
		}

		receipt, err := c.client.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return apperrors.ErrTransactionReverted
			}
			return nil
		case errors.Is(err, ethereum.NotFound):
			// Ещё не в блоке, ждём дальше
		default:
			log.WithError(err).Warn("Ошибка опроса квитанции")
		}

		if !c.clock.Now().Before(deadline) {
			return apperrors.ErrConfirmationTimeout
		}
	}
}

// settle зачисляет подтверждённый вывод: кристаллы, очки сезона, комбо —
// одной транзакцией БД; затем чистит ожидающую награду и пишет журнал.
// Ошибка зачисления сохраняет награду (игрок повторит попытку).
func (c *Coordinator) settle(ctx context.Context, userID int64, rec *mining.PendingReward, txHash string) (*Result, error) {
	now := c.clock.Now()

	combo, err := c.ledger.ComboStateOf(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось прочитать комбо, серия начнётся заново")
		combo = rewards.ComboState{}
	}
	newCombo := rewards.UpdateCombo(combo, now)
	points := rewards.SeasonPoints(rec.Tier, rec.Amount)

	desc := fmt.Sprintf("Вывод награды: жила %s, tx %s", rec.Tier.Name(), txHash)
	if err := c.ledger.Settle(ctx, userID, rec.Amount, points, newCombo, desc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}

	if err := c.manager.FinishClaim(ctx, rec, txHash); err != nil {
		// Кристаллы зачислены, но запись не удалилась — залогировано там
		log.WithError(err).WithField("user_id", userID).Error("Вывод зачислен, но очистка не удалась")
	}

	result := &Result{
		TxHash: txHash,
		Reward: rec.Amount,
		Points: points,
		Combo:  newCombo,
	}

	if c.sink != nil {
		unlocked, err := c.sink.ClaimSettled(ctx, userID, rec.Amount, newCombo.Level)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Трекер заданий не обработал вывод")
		}
		result.Unlocked = unlocked
	}

	return result, nil
}
